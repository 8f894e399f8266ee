package capability

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

// Mux routes app ids to transports by scheme: mcp:// ids go to the MCP
// transport, everything else to the HTTP transport.
type Mux struct {
	http Transport
	mcp  Transport
}

// NewMux creates a Mux. mcp may be nil when no MCP server is configured.
func NewMux(http Transport, mcp Transport) *Mux {
	return &Mux{http: http, mcp: mcp}
}

func (m *Mux) route(appID string) (Transport, error) {
	if strings.HasPrefix(appID, MCPScheme) {
		if m.mcp == nil {
			return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "no MCP server configured",
				goerr.V("app_id", appID))
		}
		return m.mcp, nil
	}
	if m.http == nil {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "no HTTP transport configured",
			goerr.V("app_id", appID))
	}
	return m.http, nil
}

func (m *Mux) Discover(ctx context.Context, appID string) (*model.CapabilityDescriptor, error) {
	t, err := m.route(appID)
	if err != nil {
		return nil, err
	}
	return t.Discover(ctx, appID)
}

func (m *Mux) Execute(ctx context.Context, desc *model.CapabilityDescriptor, uid string, input map[string]any) ([]byte, error) {
	t, err := m.route(desc.AppID)
	if err != nil {
		return nil, err
	}
	return t.Execute(ctx, desc, uid, input)
}

func (m *Mux) FetchResource(ctx context.Context, desc *model.CapabilityDescriptor, ref string) ([]byte, error) {
	t, err := m.route(desc.AppID)
	if err != nil {
		return nil, err
	}
	return t.FetchResource(ctx, desc, ref)
}
