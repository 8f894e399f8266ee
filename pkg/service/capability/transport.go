// Package capability invokes remote generative apps. It discovers an app's
// declared input and output schemas, validates payloads against them and
// normalizes the heterogeneous responses remote apps produce.
package capability

import (
	"context"

	"github.com/m-mizutani/kiln/pkg/model"
)

// Transport talks to one family of remote apps
type Transport interface {
	// Discover fetches the manifest and the input/output schemas of an app
	Discover(ctx context.Context, appID string) (*model.CapabilityDescriptor, error)
	// Execute runs the app and returns its raw, not yet classified output
	Execute(ctx context.Context, desc *model.CapabilityDescriptor, uid string, input map[string]any) ([]byte, error)
	// FetchResource downloads a resource referenced by an output field
	FetchResource(ctx context.Context, desc *model.CapabilityDescriptor, ref string) ([]byte, error)
}
