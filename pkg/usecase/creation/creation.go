// Package creation runs the creation pipeline and serves queries over past
// creations.
package creation

import (
	"github.com/m-mizutani/kiln/pkg/adapter"
	"github.com/m-mizutani/kiln/pkg/interfaces"
	"github.com/m-mizutani/kiln/pkg/service/expander"
	"github.com/m-mizutani/kiln/pkg/service/tagger"
)

const (
	DefaultImageApp = "f0997a01-d6d3-a5fe-53d8-561300318557"
	DefaultModelApp = "69543f29-4d41-4afc-7f29-3d51591f11eb"
)

// UseCase provides creation-related operations
type UseCase struct {
	memory   interfaces.MemoryStore
	index    interfaces.VectorIndex
	invoker  interfaces.Invoker
	storage  adapter.Storage
	expander interfaces.PromptExpander
	tagger   *tagger.Tagger
	policy   interfaces.TagPolicy

	imageApp string
	modelApp string
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithExpander sets the prompt expander. Without it prompts are used as given.
func WithExpander(e interfaces.PromptExpander) Option {
	return func(uc *UseCase) {
		uc.expander = e
	}
}

// WithTagPolicy sets a policy applied after heuristic tagging
func WithTagPolicy(p interfaces.TagPolicy) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

// WithApps sets the text-to-image and image-to-3D app ids
func WithApps(imageApp, modelApp string) Option {
	return func(uc *UseCase) {
		if imageApp != "" {
			uc.imageApp = imageApp
		}
		if modelApp != "" {
			uc.modelApp = modelApp
		}
	}
}

// New creates a new creation UseCase instance
func New(
	memory interfaces.MemoryStore,
	index interfaces.VectorIndex,
	invoker interfaces.Invoker,
	storage adapter.Storage,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		memory:   memory,
		index:    index,
		invoker:  invoker,
		storage:  storage,
		expander: expander.Disabled{},
		tagger:   tagger.New(),
		imageApp: DefaultImageApp,
		modelApp: DefaultModelApp,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Apps returns the configured image and model app ids
func (uc *UseCase) Apps() (string, string) {
	return uc.imageApp, uc.modelApp
}
