package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type captionParams struct {
	Prompt string `json:"prompt" jsonschema:"Prompt to caption"`
}

// caption answers with a stringified native mapping, like apps that print
// their result dict instead of serializing it
func caption(ctx context.Context, req *mcp.CallToolRequest, params *captionParams) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "{'caption': 'A picture of " + params.Prompt + "', 'score': 1, 'final': True}"},
		},
	}, nil, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-stdio-app",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "caption",
		Description: "Caption a prompt",
	}, caption)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
