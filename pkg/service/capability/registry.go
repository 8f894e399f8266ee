package capability

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

// Registry caches resolved capability descriptors and their compiled input
// validators. An entry lives until Invalidate is called for its app id.
type Registry struct {
	transport Transport

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	desc  *model.CapabilityDescriptor
	input *jsonschema.Resolved
}

func NewRegistry(transport Transport) *Registry {
	return &Registry{
		transport: transport,
		entries:   make(map[string]*registryEntry),
	}
}

// Resolve returns the cached descriptor of appID, discovering it on first use
func (r *Registry) Resolve(ctx context.Context, appID string) (*model.CapabilityDescriptor, error) {
	entry, err := r.entry(ctx, appID)
	if err != nil {
		return nil, err
	}
	return entry.desc, nil
}

// Invalidate drops the cached descriptor so the next Resolve rediscovers it
func (r *Registry) Invalidate(appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, appID)
}

// Descriptors returns all cached descriptors ordered by app id
func (r *Registry) Descriptors() []*model.CapabilityDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	descs := make([]*model.CapabilityDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	slices.SortFunc(descs, func(a, b *model.CapabilityDescriptor) int {
		return strings.Compare(a.AppID, b.AppID)
	})
	return descs
}

func (r *Registry) entry(ctx context.Context, appID string) (*registryEntry, error) {
	r.mu.Lock()
	cached, ok := r.entries[appID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	desc, err := r.transport.Discover(ctx, appID)
	if err != nil {
		return nil, err
	}
	if desc.Input == nil {
		return nil, goerr.Wrap(model.ErrSchemaInvalid, "capability has no input schema", goerr.V("app_id", appID))
	}

	input, err := desc.Input.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(model.ErrSchemaInvalid, "failed to resolve input schema",
			goerr.V("app_id", appID), goerr.V("cause", err.Error()))
	}
	if desc.Output != nil {
		if _, err := desc.Output.Resolve(nil); err != nil {
			return nil, goerr.Wrap(model.ErrSchemaInvalid, "failed to resolve output schema",
				goerr.V("app_id", appID), goerr.V("cause", err.Error()))
		}
	}
	if desc.ResolvedAt.IsZero() {
		desc.ResolvedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent resolution may have won the race; keep the first one
	if cached, ok := r.entries[appID]; ok {
		return cached, nil
	}
	entry := &registryEntry{desc: desc, input: input}
	r.entries[appID] = entry

	logging.From(ctx).Info("capability resolved",
		"app_id", appID,
		"name", desc.Manifest.Name,
		"resource_fields", desc.ResourceFields())

	return entry, nil
}
