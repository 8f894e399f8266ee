package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/adapter"
)

func TestClaudeComplete(t *testing.T) {
	apiKey := os.Getenv("TEST_ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_ANTHROPIC_API_KEY is not set")
	}

	client := adapter.NewClaude(apiKey, adapter.WithClaudeMaxTokens(128))
	reply, err := client.Complete(context.Background(), "Answer in one short sentence.", "Describe a glowing dragon.")
	gt.NoError(t, err)
	gt.True(t, reply != "")
}

func TestOpenAIComplete(t *testing.T) {
	apiKey := os.Getenv("TEST_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_OPENAI_API_KEY is not set")
	}

	client := adapter.NewOpenAI(apiKey)
	reply, err := client.Complete(context.Background(), "Answer in one short sentence.", "Describe a glowing dragon.")
	gt.NoError(t, err)
	gt.True(t, reply != "")
}
