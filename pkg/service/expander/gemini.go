package expander

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/adapter"
	"github.com/m-mizutani/kiln/pkg/model"
	"google.golang.org/genai"
)

// Gemini expands prompts with the Gemini API
type Gemini struct {
	client adapter.Gemini
}

func NewGemini(client adapter.Gemini) *Gemini {
	return &Gemini{client: client}
}

func generateConfig() *genai.GenerateContentConfig {
	thinkingBudget := int32(0)
	return &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
}

func (g *Gemini) Expand(ctx context.Context, prompt string) (string, error) {
	text, err := render(expandPromptTmpl, prompt)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	resp, err := g.client.GenerateContent(ctx, contents, generateConfig())
	if err != nil {
		return "", goerr.Wrap(err, "failed to expand prompt")
	}

	return cleanExpansion(adapter.ResponseText(resp))
}

func (g *Gemini) Analyze(ctx context.Context, prompt string) (*model.Elements, error) {
	text, err := render(analyzePromptTmpl, prompt)
	if err != nil {
		return nil, err
	}

	config := generateConfig()
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"subject": {Type: genai.TypeString, Description: "Main subject"},
			"style":   {Type: genai.TypeString, Description: "Artistic style"},
			"mood":    {Type: genai.TypeString, Description: "Overall mood"},
			"colors": {
				Type:        genai.TypeArray,
				Description: "Colors mentioned or implied",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"setting": {Type: genai.TypeString, Description: "Where the scene takes place"},
		},
		Required: []string{"subject", "style", "mood", "colors", "setting"},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	resp, err := g.client.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to analyze prompt")
	}

	return parseElements(adapter.ResponseText(resp))
}
