package capability

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPScheme prefixes app ids served by MCP tools: mcp://<server>/<tool>
const MCPScheme = "mcp://"

// MCPServerConfig represents configuration for a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// MCPTransport exposes tools of connected MCP servers as remote apps. Tool
// input and output schemas are the app schemas, a tool call is an execution
// and resources are read with resources/read.
type MCPTransport struct {
	mu      sync.RWMutex
	servers map[string]*mcpServer
}

type mcpServer struct {
	name    string
	session *mcp.ClientSession
}

func NewMCPTransport() *MCPTransport {
	return &MCPTransport{
		servers: make(map[string]*mcpServer),
	}
}

// Connect connects to an MCP server with the given configuration
func (t *MCPTransport) Connect(ctx context.Context, cfg MCPServerConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.servers[cfg.Name]; exists {
		return goerr.New("server already connected", goerr.V("name", cfg.Name))
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "kiln",
		Version: "0.1.0",
	}, nil)

	var transport mcp.Transport
	switch cfg.Transport {
	case "stdio":
		if len(cfg.Command) == 0 {
			return goerr.New("command is required for stdio transport", goerr.V("server", cfg.Name))
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}

	case "http":
		if cfg.URL == "" {
			return goerr.New("url is required for http transport", goerr.V("server", cfg.Name))
		}
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}

	default:
		return goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(model.ErrCapabilityUnavailable, "failed to connect to MCP server",
			goerr.V("server", cfg.Name), goerr.V("cause", err.Error()))
	}

	t.servers[cfg.Name] = &mcpServer{name: cfg.Name, session: session}
	return nil
}

// Servers returns names of all connected servers, sorted
func (t *MCPTransport) Servers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.servers))
	for name := range t.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes all MCP server connections
func (t *MCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, srv := range t.servers {
		if err := srv.session.Close(); err != nil {
			return goerr.Wrap(err, "failed to close session", goerr.V("server", name))
		}
		delete(t.servers, name)
	}
	return nil
}

// SplitMCPAppID splits mcp://server/tool into server and tool names
func SplitMCPAppID(appID string) (string, string, error) {
	rest, ok := strings.CutPrefix(appID, MCPScheme)
	if !ok {
		return "", "", goerr.New("not an MCP app id", goerr.V("app_id", appID))
	}
	server, tool, ok := strings.Cut(rest, "/")
	if !ok || server == "" || tool == "" {
		return "", "", goerr.New("MCP app id must be mcp://<server>/<tool>", goerr.V("app_id", appID))
	}
	return server, tool, nil
}

func (t *MCPTransport) session(appID string) (*mcpServer, string, error) {
	serverName, toolName, err := SplitMCPAppID(appID)
	if err != nil {
		return nil, "", goerr.Wrap(model.ErrCapabilityUnavailable, "invalid app id", goerr.V("cause", err.Error()))
	}

	t.mu.RLock()
	srv, ok := t.servers[serverName]
	t.mu.RUnlock()
	if !ok {
		return nil, "", goerr.Wrap(model.ErrCapabilityUnavailable, "MCP server not connected",
			goerr.V("server", serverName))
	}
	return srv, toolName, nil
}

func (t *MCPTransport) Discover(ctx context.Context, appID string) (*model.CapabilityDescriptor, error) {
	srv, toolName, err := t.session(appID)
	if err != nil {
		return nil, err
	}

	result, err := srv.session.ListTools(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "failed to list tools",
			goerr.V("server", srv.name), goerr.V("cause", err.Error()))
	}

	idx := slices.IndexFunc(result.Tools, func(tool *mcp.Tool) bool { return tool.Name == toolName })
	if idx < 0 {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "tool not found",
			goerr.V("server", srv.name), goerr.V("tool", toolName))
	}
	tool := result.Tools[idx]

	input, err := convertSchema(tool.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(model.ErrSchemaInvalid, "invalid tool input schema",
			goerr.V("tool", toolName), goerr.V("cause", err.Error()))
	}
	output, err := convertSchema(tool.OutputSchema)
	if err != nil {
		return nil, goerr.Wrap(model.ErrSchemaInvalid, "invalid tool output schema",
			goerr.V("tool", toolName), goerr.V("cause", err.Error()))
	}

	return &model.CapabilityDescriptor{
		AppID:    appID,
		Endpoint: MCPScheme + srv.name,
		Manifest: model.Manifest{
			Name:        tool.Name,
			Description: tool.Description,
		},
		Input:      input,
		Output:     output,
		ResolvedAt: time.Now(),
	}, nil
}

// convertSchema converts a tool schema (decoded as a generic value) to
// jsonschema.Schema through JSON marshaling/unmarshaling
func convertSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal schema")
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal schema")
	}
	return &schema, nil
}

func (t *MCPTransport) Execute(ctx context.Context, desc *model.CapabilityDescriptor, uid string, input map[string]any) ([]byte, error) {
	srv, toolName, err := t.session(desc.AppID)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("calling MCP tool", "server", srv.name, "tool", toolName, "uid", uid)

	result, err := srv.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: input,
	})
	if err != nil {
		return nil, goerr.Wrap(model.ErrRemoteExecution, "failed to call tool",
			goerr.V("server", srv.name), goerr.V("tool", toolName), goerr.V("cause", err.Error()))
	}

	text := toolText(result)
	if result.IsError {
		return nil, goerr.Wrap(model.ErrRemoteExecution, "tool returned an error",
			goerr.V("server", srv.name), goerr.V("tool", toolName), goerr.V("message", text))
	}

	if result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, goerr.Wrap(model.ErrResponseUnparseable, "failed to marshal structured content",
				goerr.V("cause", err.Error()))
		}
		return raw, nil
	}

	// Text content is handed over as a JSON string so that it goes through
	// the same classification as any other string response.
	raw, err := json.Marshal(text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrResponseUnparseable, "failed to marshal text content",
			goerr.V("cause", err.Error()))
	}
	return raw, nil
}

func toolText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

func (t *MCPTransport) FetchResource(ctx context.Context, desc *model.CapabilityDescriptor, ref string) ([]byte, error) {
	srv, _, err := t.session(desc.AppID)
	if err != nil {
		return nil, goerr.Wrap(model.ErrResourceResolution, "failed to resolve server",
			goerr.V("cause", err.Error()))
	}

	result, err := srv.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: ref})
	if err != nil {
		return nil, goerr.Wrap(model.ErrResourceResolution, "failed to read resource",
			goerr.V("server", srv.name), goerr.V("uri", ref), goerr.V("cause", err.Error()))
	}
	if len(result.Contents) == 0 {
		return nil, goerr.Wrap(model.ErrResourceResolution, "resource is empty",
			goerr.V("server", srv.name), goerr.V("uri", ref))
	}

	contents := result.Contents[0]
	if len(contents.Blob) > 0 {
		return contents.Blob, nil
	}
	return []byte(contents.Text), nil
}
