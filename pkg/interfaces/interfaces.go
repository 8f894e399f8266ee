package interfaces

import (
	"context"

	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/vector"
)

// PromptExpander enriches a prompt before image generation. Both calls may
// fail; callers fall back to the raw prompt.
type PromptExpander interface {
	Expand(ctx context.Context, prompt string) (string, error)
	Analyze(ctx context.Context, prompt string) (*model.Elements, error)
}

// Invoker calls a remote generative capability and returns its normalized output
type Invoker interface {
	Invoke(ctx context.Context, appID string, input map[string]any) (map[string]any, error)
}

// TagPolicy adjusts heuristic tagging
type TagPolicy interface {
	Apply(ctx context.Context, prompt, expanded string, tagging *model.Tagging) (*model.Tagging, error)
}

// MemoryStore is the two-tier store of sessions and creation records
type MemoryStore interface {
	StoreShortTerm(ctx context.Context, sessionID string, session *model.SessionContext)
	RetrieveShortTerm(ctx context.Context, sessionID string) *model.SessionContext

	StoreLongTerm(ctx context.Context, record *model.CreationRecord) (model.CreationID, error)
	RetrieveLongTerm(ctx context.Context, id model.CreationID) (*model.CreationRecord, error)
	Recent(ctx context.Context, userID string, limit int) ([]*model.CreationRecord, error)

	SearchMemory(ctx context.Context, userID, query string) ([]*model.CreationRecord, error)
	SearchByTags(ctx context.Context, userID string, tags []string) ([]*model.CreationRecord, error)
	SearchByCategory(ctx context.Context, userID, category string) ([]*model.CreationRecord, error)
	GetAllTags(ctx context.Context, userID string) ([]string, error)
	GetAllCategories(ctx context.Context, userID string) ([]string, error)

	UpdateTags(ctx context.Context, id model.CreationID, tags []string) (*model.CreationRecord, error)
	Delete(ctx context.Context, id model.CreationID) error
}

// VectorIndex is the embedding index over creation records
type VectorIndex interface {
	Add(ctx context.Context, entry vector.Entry) error
	SearchByText(ctx context.Context, query string, n int, filter *vector.Filter) ([]vector.Hit, error)
	Delete(ctx context.Context, recordID model.CreationID) error
	Count() int
}
