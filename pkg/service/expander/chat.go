package expander

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

const chatSystemPrompt = "You write prompts for image generation models. Follow the instructions exactly and answer without preamble."

// completer is a chat model answering one system and one user message.
// adapter.Claude and adapter.OpenAI satisfy it.
type completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Chat expands prompts with a chat completion model
type Chat struct {
	client completer
}

func NewChat(client completer) *Chat {
	return &Chat{client: client}
}

func (c *Chat) Expand(ctx context.Context, prompt string) (string, error) {
	text, err := render(expandPromptTmpl, prompt)
	if err != nil {
		return "", err
	}

	reply, err := c.client.Complete(ctx, chatSystemPrompt, text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to expand prompt")
	}
	return cleanExpansion(reply)
}

func (c *Chat) Analyze(ctx context.Context, prompt string) (*model.Elements, error) {
	text, err := render(analyzePromptTmpl, prompt)
	if err != nil {
		return nil, err
	}

	reply, err := c.client.Complete(ctx, chatSystemPrompt, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to analyze prompt")
	}
	return parseElements(reply)
}
