// Package expander turns a short prompt into a detailed image description and
// extracts its structured elements with a language model.
package expander

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

//go:embed prompt/expand.md
var expandPromptRaw string

//go:embed prompt/analyze.md
var analyzePromptRaw string

var (
	expandPromptTmpl  = template.Must(template.New("expand").Parse(expandPromptRaw))
	analyzePromptTmpl = template.Must(template.New("analyze").Parse(analyzePromptRaw))
)

// ErrDisabled is returned by Disabled for every call
var ErrDisabled = goerr.New("prompt expander is disabled")

func render(tmpl *template.Template, prompt string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"Prompt": prompt,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}

func cleanExpansion(text string) (string, error) {
	text = strings.TrimSpace(stripFence(text))
	text = strings.Trim(text, "\"")
	if text == "" {
		return "", goerr.New("empty expansion from language model")
	}
	return text, nil
}

// stripFence removes a surrounding markdown code fence, if any
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func parseElements(text string) (*model.Elements, error) {
	raw := stripFence(text)
	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var elements model.Elements
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, goerr.Wrap(err, "failed to parse prompt analysis", goerr.V("text", text))
	}

	elements.Subject = strings.TrimSpace(elements.Subject)
	elements.Style = strings.TrimSpace(elements.Style)
	elements.Mood = strings.TrimSpace(elements.Mood)
	elements.Setting = strings.TrimSpace(elements.Setting)
	colors := elements.Colors[:0]
	for _, c := range elements.Colors {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			colors = append(colors, c)
		}
	}
	elements.Colors = colors
	return &elements, nil
}

// Disabled never expands. The pipeline then keeps the raw prompt.
type Disabled struct{}

func (Disabled) Expand(ctx context.Context, prompt string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Analyze(ctx context.Context, prompt string) (*model.Elements, error) {
	return nil, ErrDisabled
}
