package tagger

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const policyQuery = "data.tagging"

// Policy post-processes heuristic tagging with user supplied Rego rules.
// The `tagging` package may define `add` and `remove` sets and a
// `primary_category` string. Input is the prompt, the expanded prompt and the
// heuristic result.
type Policy struct {
	query *rego.PreparedEvalQuery
}

type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// LoadPolicy loads all Rego files in dir. It returns nil without error when
// dir is empty or holds no policy files.
func LoadPolicy(ctx context.Context, dir string) (*Policy, error) {
	if dir == "" {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := []func(*rego.Rego){rego.Query(policyQuery)}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare tagging policy", goerr.V("dir", dir))
	}

	return &Policy{query: &prepared}, nil
}

// Apply evaluates the policy and returns the adjusted tagging. The input
// tagging is not modified.
func (p *Policy) Apply(ctx context.Context, prompt, expanded string, tagging *model.Tagging) (*model.Tagging, error) {
	if p == nil || p.query == nil || tagging == nil {
		return tagging, nil
	}

	input := map[string]any{
		"prompt":           prompt,
		"expanded_prompt":  expanded,
		"tags":             tagging.Tags,
		"categories":       tagging.Categories,
		"primary_category": tagging.PrimaryCategory,
		"styles":           tagging.Styles,
		"colors":           tagging.Colors,
		"moods":            tagging.Moods,
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate tagging policy")
	}

	result := *tagging
	result.Tags = slices.Clone(tagging.Tags)
	result.Categories = slices.Clone(tagging.Categories)

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &result, nil
	}

	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("tagging policy returned unexpected document",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	remove := toStrings(doc["remove"])
	tags := slices.DeleteFunc(append(result.Tags, toStrings(doc["add"])...), func(tag string) bool {
		return slices.Contains(remove, tag)
	})
	result.Tags = uniqueSorted(tags)

	if primary, ok := doc["primary_category"].(string); ok && primary != "" {
		result.PrimaryCategory = primary
		if !slices.Contains(result.Categories, primary) {
			result.Categories = append(result.Categories, primary)
		}
	}

	return &result, nil
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
