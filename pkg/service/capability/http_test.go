package capability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/capability"
)

const (
	promptInputSchema = `{"type":"object","properties":{"prompt":{"type":"string"}},"required":["prompt"]}`
	textInputSchema   = `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`
	imageOutputSchema = `{"type":"object","properties":{"result":{"type":"string","format":"resource"}}}`
	plainOutputSchema = `{"type":"object","properties":{"result":{"type":"string"}}}`
)

// fakeApp serves the discovery endpoints and the /app websocket of a remote app
type fakeApp struct {
	mu           sync.Mutex
	inputSchema  string
	outputSchema string
	replies      []string
	hang         bool
	resources    map[string][]byte
	discoveries  int
	requests     []map[string]any
}

func (f *fakeApp) setInputSchema(schema string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputSchema = schema
}

func (f *fakeApp) discoveryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoveries
}

func (f *fakeApp) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeApp) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/manifest", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.discoveries++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"name":"fake-app","version":"1.0.0","description":"test app"}`))
	})

	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Query().Get("type") {
		case "input":
			_, _ = w.Write([]byte(f.inputSchema))
		case "output":
			_, _ = w.Write([]byte(f.outputSchema))
		default:
			http.Error(w, "bad type", http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		data, ok := f.resources[r.URL.Query().Get("reid")]
		f.mu.Unlock()
		if !ok {
			http.Error(w, "Resource not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	})

	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var req struct {
			Type string         `json:"type"`
			UID  string         `json:"uid"`
			Data map[string]any `json:"data"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, req.Data)
		replies := f.replies
		hang := f.hang
		f.mu.Unlock()

		for _, reply := range replies {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
		if hang {
			// wait for the client to give up
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	})

	return mux
}

func newFakeApp(t *testing.T, app *fakeApp) (*httptest.Server, *capability.Stub) {
	t.Helper()
	server := httptest.NewServer(app.handler(t))
	t.Cleanup(server.Close)

	registry := capability.NewRegistry(capability.NewHTTPTransport())
	return server, capability.NewStub(registry, capability.WithTimeout(2*time.Second))
}

func completed(data string) string {
	return `{"status":"completed","data":` + data + `}`
}

func TestStubInvokeWithResource(t *testing.T) {
	app := &fakeApp{
		inputSchema:  promptInputSchema,
		outputSchema: imageOutputSchema,
		replies: []string{
			`{"status":"queued"}`,
			`{"status":"running"}`,
			completed(`{"result":"reid-1"}`),
		},
		resources: map[string][]byte{"reid-1": []byte("PNGDATA")},
	}
	server, stub := newFakeApp(t, app)

	out, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "a glowing dragon"})
	gt.NoError(t, err)
	gt.Equal(t, out["result"], any([]byte("PNGDATA")))
	gt.Equal(t, app.lastRequest()["prompt"], any("a glowing dragon"))

	desc, err := stub.Registry().Resolve(context.Background(), server.URL)
	gt.NoError(t, err)
	gt.Equal(t, desc.Manifest.Name, "fake-app")
	gt.Equal(t, desc.ResourceFields(), []string{"result"})
	gt.A(t, stub.Registry().Descriptors()).Length(1)
	// cached: discovery happened once
	gt.Equal(t, app.discoveryCount(), 1)
}

func TestStubInvokeEncodings(t *testing.T) {
	testCases := map[string]string{
		"object":         `{"result":"abc","score":1}`,
		"encoded string": `"{\"result\":\"abc\",\"score\":1}"`,
		"native mapping": `"{'result': 'abc', 'score': 1}"`,
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			app := &fakeApp{
				inputSchema:  promptInputSchema,
				outputSchema: plainOutputSchema,
				replies:      []string{completed(data)},
			}
			server, stub := newFakeApp(t, app)

			out, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
			gt.NoError(t, err)
			gt.Equal(t, out, map[string]any{"result": "abc", "score": float64(1)})
		})
	}
}

func TestStubReResolvesOnSchemaDrift(t *testing.T) {
	app := &fakeApp{
		inputSchema:  textInputSchema,
		outputSchema: plainOutputSchema,
		replies:      []string{completed(`{"result":"ok"}`)},
	}
	server, stub := newFakeApp(t, app)
	ctx := context.Background()

	_, err := stub.Registry().Resolve(ctx, server.URL)
	gt.NoError(t, err)
	gt.Equal(t, app.discoveryCount(), 1)

	// remote app now expects "prompt" instead of "text"
	app.setInputSchema(promptInputSchema)

	out, err := stub.Invoke(ctx, server.URL, map[string]any{"prompt": "x"})
	gt.NoError(t, err)
	gt.Equal(t, out["result"], any("ok"))
	gt.Equal(t, app.discoveryCount(), 2)

	// still invalid after one re-resolution
	_, err = stub.Invoke(ctx, server.URL, map[string]any{"other": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
	gt.Equal(t, app.discoveryCount(), 3)
}

func TestStubRemoteFailure(t *testing.T) {
	testCases := map[string]string{
		"failed":    `{"status":"failed","message":"out of memory"}`,
		"cancelled": `{"status":"CANCELLED"}`,
		"unknown":   `{"status":"exploded"}`,
	}

	for name, reply := range testCases {
		t.Run(name, func(t *testing.T) {
			app := &fakeApp{
				inputSchema:  promptInputSchema,
				outputSchema: plainOutputSchema,
				replies:      []string{`{"status":"running"}`, reply},
			}
			server, stub := newFakeApp(t, app)

			_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrRemoteExecution))
		})
	}
}

func TestStubTimeout(t *testing.T) {
	app := &fakeApp{
		inputSchema:  promptInputSchema,
		outputSchema: plainOutputSchema,
		replies:      []string{`{"status":"running"}`},
		hang:         true,
	}
	server := httptest.NewServer(app.handler(t))
	defer server.Close()

	stub := capability.NewStub(
		capability.NewRegistry(capability.NewHTTPTransport()),
		capability.WithTimeout(200*time.Millisecond),
	)

	started := time.Now()
	_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRemoteExecution))
	gt.True(t, time.Since(started) < 5*time.Second)
}

func TestStubUnparseableResponse(t *testing.T) {
	app := &fakeApp{
		inputSchema:  promptInputSchema,
		outputSchema: plainOutputSchema,
		replies:      []string{completed(`"definitely not a mapping"`)},
	}
	server, stub := newFakeApp(t, app)

	_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrResponseUnparseable))
}

func TestStubMissingResource(t *testing.T) {
	app := &fakeApp{
		inputSchema:  promptInputSchema,
		outputSchema: imageOutputSchema,
		replies:      []string{completed(`{"result":"reid-missing"}`)},
		resources:    map[string][]byte{},
	}
	server, stub := newFakeApp(t, app)

	_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrResourceResolution))
}

func TestStubCapabilityUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	stub := capability.NewStub(capability.NewRegistry(capability.NewHTTPTransport()))
	_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrCapabilityUnavailable))
}

func TestStubSchemaInvalid(t *testing.T) {
	app := &fakeApp{
		inputSchema:  `{"type": "object", "properties": `,
		outputSchema: plainOutputSchema,
	}
	server, stub := newFakeApp(t, app)

	_, err := stub.Invoke(context.Background(), server.URL, map[string]any{"prompt": "x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSchemaInvalid))
}

func TestRegistryInvalidate(t *testing.T) {
	app := &fakeApp{inputSchema: promptInputSchema, outputSchema: plainOutputSchema}
	server := httptest.NewServer(app.handler(t))
	defer server.Close()

	registry := capability.NewRegistry(capability.NewHTTPTransport())
	ctx := context.Background()

	_, err := registry.Resolve(ctx, server.URL)
	gt.NoError(t, err)
	_, err = registry.Resolve(ctx, server.URL)
	gt.NoError(t, err)
	gt.Equal(t, app.discoveryCount(), 1)

	registry.Invalidate(server.URL)
	gt.A(t, registry.Descriptors()).Length(0)

	_, err = registry.Resolve(ctx, server.URL)
	gt.NoError(t, err)
	gt.Equal(t, app.discoveryCount(), 2)
}

func TestHTTPTransportBaseURL(t *testing.T) {
	transport := capability.NewHTTPTransport()
	gt.Equal(t, transport.BaseURL("f0997a01-d6d3"), "https://f0997a01-d6d3"+capability.DefaultAppDomain)
	gt.Equal(t, transport.BaseURL("f0997a01-d6d3"+capability.DefaultAppDomain+"/"), "https://f0997a01-d6d3"+capability.DefaultAppDomain)
	gt.Equal(t, transport.BaseURL("http://localhost:8080"), "http://localhost:8080")

	custom := capability.NewHTTPTransport(capability.WithAppDomain(".example.test"))
	gt.Equal(t, custom.BaseURL("app"), "https://app.example.test")
}

func TestExecuteMessageShape(t *testing.T) {
	app := &fakeApp{
		inputSchema:  promptInputSchema,
		outputSchema: plainOutputSchema,
		replies:      []string{completed(`{"result":"ok"}`)},
	}
	server, _ := newFakeApp(t, app)

	transport := capability.NewHTTPTransport()
	desc, err := transport.Discover(context.Background(), server.URL)
	gt.NoError(t, err)

	raw, err := transport.Execute(context.Background(), desc, "user-1", map[string]any{"prompt": "hello"})
	gt.NoError(t, err)

	var decoded map[string]any
	gt.NoError(t, json.Unmarshal(raw, &decoded))
	gt.Equal(t, decoded["result"], any("ok"))
	gt.Equal(t, app.lastRequest()["prompt"], any("hello"))
}
