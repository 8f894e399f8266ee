package capability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

// DefaultAppDomain is appended to bare app ids
const DefaultAppDomain = ".node3.openfabric.network"

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// HTTPTransport reaches apps that publish their manifest and schemas over
// HTTP and execute requests over a websocket at /app.
type HTTPTransport struct {
	client *http.Client
	dialer *websocket.Dialer
	domain string
}

type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the client used for discovery and resources
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithDialer replaces the websocket dialer used for execution
func WithDialer(dialer *websocket.Dialer) HTTPOption {
	return func(t *HTTPTransport) {
		t.dialer = dialer
	}
}

// WithAppDomain sets the suffix appended to app ids without a scheme
func WithAppDomain(domain string) HTTPOption {
	return func(t *HTTPTransport) {
		t.domain = domain
	}
}

func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{Timeout: 5 * time.Second},
		dialer: websocket.DefaultDialer,
		domain: DefaultAppDomain,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the endpoint of appID. IDs that already carry a scheme are
// used as is.
func (t *HTTPTransport) BaseURL(appID string) string {
	id := strings.TrimRight(strings.TrimSpace(appID), "/")
	if strings.Contains(id, "://") {
		return id
	}
	if t.domain != "" && !strings.HasSuffix(id, t.domain) {
		id += t.domain
	}
	return "https://" + id
}

func (t *HTTPTransport) Discover(ctx context.Context, appID string) (*model.CapabilityDescriptor, error) {
	base := t.BaseURL(appID)
	desc := &model.CapabilityDescriptor{
		AppID:    appID,
		Endpoint: base,
	}

	body, err := t.get(ctx, base+"/manifest")
	if err != nil {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "failed to fetch manifest",
			goerr.V("app_id", appID), goerr.V("cause", err.Error()))
	}
	if err := json.Unmarshal(body, &desc.Manifest); err != nil {
		return nil, goerr.Wrap(model.ErrSchemaInvalid, "failed to parse manifest",
			goerr.V("app_id", appID), goerr.V("cause", err.Error()))
	}

	for _, kind := range []string{"input", "output"} {
		body, err := t.get(ctx, base+"/schema?type="+kind)
		if err != nil {
			return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "failed to fetch schema",
				goerr.V("app_id", appID), goerr.V("type", kind), goerr.V("cause", err.Error()))
		}

		var schema jsonschema.Schema
		if err := json.Unmarshal(body, &schema); err != nil {
			return nil, goerr.Wrap(model.ErrSchemaInvalid, "failed to parse schema",
				goerr.V("app_id", appID), goerr.V("type", kind), goerr.V("cause", err.Error()))
		}
		if kind == "input" {
			desc.Input = &schema
		} else {
			desc.Output = &schema
		}
	}

	logging.From(ctx).Debug("discovered capability",
		"app_id", appID,
		"endpoint", base,
		"name", desc.Manifest.Name)

	return desc, nil
}

type executeRequest struct {
	Type string         `json:"type"`
	UID  string         `json:"uid"`
	Data map[string]any `json:"data"`
}

type executeMessage struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (t *HTTPTransport) Execute(ctx context.Context, desc *model.CapabilityDescriptor, uid string, input map[string]any) ([]byte, error) {
	wsURL, err := toWebsocketURL(desc.Endpoint + "/app")
	if err != nil {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "invalid app endpoint",
			goerr.V("endpoint", desc.Endpoint), goerr.V("cause", err.Error()))
	}

	conn, resp, err := t.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, goerr.Wrap(model.ErrCapabilityUnavailable, "failed to connect to app",
			goerr.V("app_id", desc.AppID), goerr.V("url", wsURL), goerr.V("cause", err.Error()))
	}
	defer conn.Close()

	// unblocks ReadJSON when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteJSON(executeRequest{Type: "execute", UID: uid, Data: input}); err != nil {
		return nil, goerr.Wrap(model.ErrRemoteExecution, "failed to send request",
			goerr.V("app_id", desc.AppID), goerr.V("cause", err.Error()))
	}

	for {
		var msg executeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, goerr.Wrap(model.ErrRemoteExecution, "remote execution timed out",
					goerr.V("app_id", desc.AppID), goerr.V("cause", ctx.Err().Error()))
			}
			return nil, goerr.Wrap(model.ErrRemoteExecution, "lost connection to app",
				goerr.V("app_id", desc.AppID), goerr.V("cause", err.Error()))
		}

		switch status := strings.ToLower(msg.Status); status {
		case statusCompleted:
			return msg.Data, nil
		case statusFailed, statusCancelled:
			return nil, goerr.Wrap(model.ErrRemoteExecution, "request failed or was cancelled",
				goerr.V("app_id", desc.AppID), goerr.V("status", status), goerr.V("message", msg.Message))
		case "", "queued", "pending", "running":
			logging.From(ctx).Debug("execution in progress", "app_id", desc.AppID, "status", status)
		default:
			return nil, goerr.Wrap(model.ErrRemoteExecution, "unknown execution status",
				goerr.V("app_id", desc.AppID), goerr.V("status", status))
		}
	}
}

func (t *HTTPTransport) FetchResource(ctx context.Context, desc *model.CapabilityDescriptor, ref string) ([]byte, error) {
	body, err := t.get(ctx, desc.Endpoint+"/resource?reid="+url.QueryEscape(ref))
	if err != nil {
		return nil, goerr.Wrap(model.ErrResourceResolution, "failed to fetch resource",
			goerr.V("app_id", desc.AppID), goerr.V("reid", ref), goerr.V("cause", err.Error()))
	}
	return body, nil
}

func (t *HTTPTransport) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("url", target))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "request failed", goerr.V("url", target))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response body", goerr.V("url", target))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, goerr.New("unexpected status code",
			goerr.V("url", target),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", truncate(string(body))))
	}
	return body, nil
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}
