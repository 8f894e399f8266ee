package capability

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

const (
	DefaultTimeout = 10 * time.Minute
	DefaultUID     = "super-user"
)

// Stub invokes remote apps through a Registry. It holds no per-call state.
type Stub struct {
	registry  *Registry
	transport Transport
	timeout   time.Duration
	uid       string
}

type StubOption func(*Stub)

// WithTimeout bounds a single remote execution. Zero disables the bound.
func WithTimeout(d time.Duration) StubOption {
	return func(s *Stub) {
		s.timeout = d
	}
}

// WithUID sets the caller identity sent with every execution
func WithUID(uid string) StubOption {
	return func(s *Stub) {
		s.uid = uid
	}
}

func NewStub(registry *Registry, opts ...StubOption) *Stub {
	s := &Stub{
		registry:  registry,
		transport: registry.transport,
		timeout:   DefaultTimeout,
		uid:       DefaultUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry backing the stub
func (s *Stub) Registry() *Registry {
	return s.registry
}

// Invoke validates input against the app's input schema, runs the app and
// returns its output as a normalized mapping. Fields the output schema marks
// as resources are replaced by the fetched bytes. A schema validation failure
// triggers one rediscovery of the app before the input is rejected.
func (s *Stub) Invoke(ctx context.Context, appID string, input map[string]any) (map[string]any, error) {
	logger := logging.From(ctx).With("app_id", appID)

	entry, err := s.registry.entry(ctx, appID)
	if err != nil {
		return nil, err
	}

	if err := entry.input.Validate(input); err != nil {
		logger.Warn("input rejected by cached schema, re-resolving", "error", err.Error())
		s.registry.Invalidate(appID)

		entry, err = s.registry.entry(ctx, appID)
		if err != nil {
			return nil, err
		}
		if err := entry.input.Validate(input); err != nil {
			return nil, goerr.Wrap(model.ErrInvalidInput, "input does not match capability schema",
				goerr.V("app_id", appID), goerr.V("cause", err.Error()))
		}
	}

	execCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := s.transport.Execute(execCtx, entry.desc, s.uid, input)
	if err != nil {
		return nil, err
	}

	output, encoding, err := Decode(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to normalize response", goerr.V("app_id", appID))
	}

	if err := s.resolveResources(ctx, entry.desc, output); err != nil {
		return nil, err
	}

	logger.Debug("capability invoked",
		"encoding", encoding.String(),
		"elapsed", time.Since(started).String(),
		"fields", len(output))

	return output, nil
}

// resolveResources replaces resource references in output in place
func (s *Stub) resolveResources(ctx context.Context, desc *model.CapabilityDescriptor, output map[string]any) error {
	for _, field := range desc.ResourceFields() {
		switch v := output[field].(type) {
		case nil:
			continue

		case string:
			data, err := s.transport.FetchResource(ctx, desc, v)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve resource field", goerr.V("field", field))
			}
			output[field] = data

		case []any:
			resolved := make([]any, len(v))
			for i, item := range v {
				ref, ok := item.(string)
				if !ok {
					return goerr.Wrap(model.ErrResourceResolution, "resource reference is not a string",
						goerr.V("field", field), goerr.V("index", i))
				}
				data, err := s.transport.FetchResource(ctx, desc, ref)
				if err != nil {
					return goerr.Wrap(err, "failed to resolve resource field",
						goerr.V("field", field), goerr.V("index", i))
				}
				resolved[i] = data
			}
			output[field] = resolved

		default:
			return goerr.Wrap(model.ErrResourceResolution, "unexpected resource reference type",
				goerr.V("field", field))
		}
	}
	return nil
}
