package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/adapter"
	"google.golang.org/genai"
)

func setupGemini(t *testing.T) *adapter.GeminiClient {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	client, err := adapter.NewGemini(context.Background(), projectID, "us-central1")
	gt.NoError(t, err)
	return client
}

func TestGenerateContent(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: "Describe a glowing dragon in one sentence."},
			},
		},
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)

	text := adapter.ResponseText(resp)
	gt.True(t, text != "")
	t.Log("response:", text)
}

func TestEmbedding(t *testing.T) {
	client := setupGemini(t)

	vec, err := client.Embedding(context.Background(), "a glowing dragon on a cliff at sunset", 256)
	gt.NoError(t, err)
	gt.A(t, vec).Length(256)
}

func TestResponseText(t *testing.T) {
	gt.Equal(t, adapter.ResponseText(nil), "")

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "a "}, {Text: "dragon"}}}},
		},
	}
	gt.Equal(t, adapter.ResponseText(resp), "a dragon")
}
