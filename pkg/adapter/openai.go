package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is the interface for OpenAI Chat Completions client
type OpenAI interface {
	// Complete sends a system and a user message and returns the reply text
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type openAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

type OpenAIOption func(*openAIClient)

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIClient) {
		c.model = model
	}
}

// NewOpenAI creates a new OpenAI API client
func NewOpenAI(apiKey string, opts ...OpenAIOption) OpenAI {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &openAIClient{
		client:    &client,
		model:     openai.ChatModelGPT4oMini,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *openAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", c.model))
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("empty chat completion", goerr.V("model", c.model))
	}
	return resp.Choices[0].Message.Content, nil
}
