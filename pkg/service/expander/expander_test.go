package expander_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/expander"
	"google.golang.org/genai"
)

type fakeGemini struct {
	reply   string
	err     error
	prompts []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}
	f.configs = append(f.configs, config)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

func (f *fakeGemini) Embedding(ctx context.Context, text string, dimension int) ([]float32, error) {
	return make([]float32, dimension), nil
}

type fakeChat struct {
	reply  string
	err    error
	system string
	prompt string
}

func (f *fakeChat) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompt = prompt
	return f.reply, f.err
}

func TestGeminiExpand(t *testing.T) {
	client := &fakeGemini{reply: "  \"A majestic dragon glowing with inner fire, perched on a cliff at golden sunset.\"\n"}
	exp := expander.NewGemini(client)

	out, err := exp.Expand(context.Background(), "a glowing dragon on a cliff at sunset")
	gt.NoError(t, err)
	gt.Equal(t, out, "A majestic dragon glowing with inner fire, perched on a cliff at golden sunset.")

	gt.A(t, client.prompts).Length(1)
	gt.True(t, strings.Contains(client.prompts[0], "Prompt: a glowing dragon on a cliff at sunset"))
	gt.Equal(t, client.configs[0].ResponseMIMEType, "")
}

func TestGeminiExpandEmpty(t *testing.T) {
	exp := expander.NewGemini(&fakeGemini{reply: "   "})
	_, err := exp.Expand(context.Background(), "a dragon")
	gt.Error(t, err)
}

func TestGeminiExpandError(t *testing.T) {
	exp := expander.NewGemini(&fakeGemini{err: errors.New("quota exceeded")})
	_, err := exp.Expand(context.Background(), "a dragon")
	gt.Error(t, err)
}

func TestGeminiAnalyze(t *testing.T) {
	client := &fakeGemini{reply: `{"subject":"dragon","style":"fantasy","mood":"epic","colors":["Orange"," gold ",""],"setting":"cliff"}`}
	exp := expander.NewGemini(client)

	elements, err := exp.Analyze(context.Background(), "a glowing dragon on a cliff at sunset")
	gt.NoError(t, err)
	gt.Equal(t, elements, &model.Elements{
		Subject: "dragon",
		Style:   "fantasy",
		Mood:    "epic",
		Colors:  []string{"orange", "gold"},
		Setting: "cliff",
	})
	gt.Equal(t, client.configs[0].ResponseMIMEType, "application/json")
	gt.NotNil(t, client.configs[0].ResponseSchema)
}

func TestChatExpand(t *testing.T) {
	client := &fakeChat{reply: "A castle of crystal under a violet sky."}
	exp := expander.NewChat(client)

	out, err := exp.Expand(context.Background(), "crystal castle")
	gt.NoError(t, err)
	gt.Equal(t, out, "A castle of crystal under a violet sky.")
	gt.True(t, client.system != "")
	gt.True(t, strings.Contains(client.prompt, "Prompt: crystal castle"))
}

func TestChatAnalyze(t *testing.T) {
	testCases := map[string]struct {
		reply   string
		want    *model.Elements
		wantErr bool
	}{
		"plain json": {
			reply: `{"subject":"castle","style":"default","mood":"neutral","colors":[],"setting":"mountains"}`,
			want:  &model.Elements{Subject: "castle", Style: "default", Mood: "neutral", Colors: []string{}, Setting: "mountains"},
		},
		"fenced json": {
			reply: "```json\n{\"subject\":\"robot\",\"style\":\"cyberpunk\",\"mood\":\"dark\",\"colors\":[\"neon\"],\"setting\":\"city\"}\n```",
			want:  &model.Elements{Subject: "robot", Style: "cyberpunk", Mood: "dark", Colors: []string{"neon"}, Setting: "city"},
		},
		"json with preamble": {
			reply: "Here you go: {\"subject\":\"cat\",\"style\":\"cartoon\",\"mood\":\"happy\",\"colors\":[\"black\"],\"setting\":\"garden\"}",
			want:  &model.Elements{Subject: "cat", Style: "cartoon", Mood: "happy", Colors: []string{"black"}, Setting: "garden"},
		},
		"not json": {
			reply:   "I cannot analyze that.",
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			exp := expander.NewChat(&fakeChat{reply: tc.reply})
			got, err := exp.Analyze(context.Background(), "prompt")
			if tc.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, got, tc.want)
		})
	}
}

func TestDisabled(t *testing.T) {
	var exp expander.Disabled
	_, err := exp.Expand(context.Background(), "a dragon")
	gt.True(t, errors.Is(err, expander.ErrDisabled))
	_, err = exp.Analyze(context.Background(), "a dragon")
	gt.True(t, errors.Is(err, expander.ErrDisabled))
}
