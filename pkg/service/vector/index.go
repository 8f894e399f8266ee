package vector

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	chromem "github.com/philippgille/chromem-go"
)

const (
	collectionName = "creations"

	metaUserID    = "user_id"
	metaCategory  = "category"
	metaTagPrefix = "tag:"
)

// Entry is what gets indexed for one creation
type Entry struct {
	RecordID model.CreationID
	Text     string
	UserID   string
	Category string
	Tags     []string
}

// EntryFromRecord builds the index entry of a creation
func EntryFromRecord(r *model.CreationRecord) Entry {
	return Entry{
		RecordID: r.ID,
		Text:     r.IndexText(),
		UserID:   r.UserID,
		Category: r.PrimaryCategory,
		Tags:     r.Tags,
	}
}

// Filter narrows a search. Empty fields match everything; all tags must be
// present on a hit.
type Filter struct {
	UserID   string
	Category string
	Tags     []string
}

func (f *Filter) where() map[string]string {
	if f == nil {
		return nil
	}
	where := map[string]string{}
	if f.UserID != "" {
		where[metaUserID] = f.UserID
	}
	if f.Category != "" {
		where[metaCategory] = f.Category
	}
	for _, tag := range f.Tags {
		where[metaTagPrefix+strings.ToLower(tag)] = "1"
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// Hit is one search result
type Hit struct {
	RecordID model.CreationID
	Score    float32
}

// Index is a similarity index over creation texts backed by a chromem-go
// collection. Adds and queries may run concurrently.
type Index struct {
	embedder   Embedder
	collection *chromem.Collection
}

// NewIndex opens the index. An empty dir keeps it in memory only.
func NewIndex(embedder Embedder, dir string) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open vector database", goerr.V("dir", dir))
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection", goerr.V("name", collectionName))
	}

	return &Index{embedder: embedder, collection: collection}, nil
}

// Add indexes an entry. Adding an existing record id replaces it.
func (x *Index) Add(ctx context.Context, entry Entry) error {
	embedding, err := x.embed(ctx, entry.Text)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		metaUserID:   entry.UserID,
		metaCategory: entry.Category,
	}
	for _, tag := range entry.Tags {
		metadata[metaTagPrefix+strings.ToLower(tag)] = "1"
	}

	doc := chromem.Document{
		ID:        entry.RecordID.String(),
		Content:   entry.Text,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := x.collection.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document", goerr.V("record_id", entry.RecordID))
	}

	logging.From(ctx).Debug("indexed creation", "record_id", entry.RecordID, "tags", len(entry.Tags))
	return nil
}

// SearchByText returns at most n hits ordered by non-increasing similarity
func (x *Index) SearchByText(ctx context.Context, query string, n int, filter *Filter) ([]Hit, error) {
	count := x.collection.Count()
	if n <= 0 || count == 0 {
		return []Hit{}, nil
	}

	embedding, err := x.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size
	results, err := x.collection.QueryEmbedding(ctx, embedding, min(n, count), filter.where(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("query", query))
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{RecordID: model.CreationID(r.ID), Score: r.Similarity})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Delete removes a record from the index. Unknown ids are ignored.
func (x *Index) Delete(ctx context.Context, recordID model.CreationID) error {
	if err := x.collection.Delete(ctx, nil, nil, recordID.String()); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("record_id", recordID))
	}
	return nil
}

// Count returns the number of indexed records
func (x *Index) Count() int {
	return x.collection.Count()
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbedding, "failed to embed text", goerr.V("cause", err.Error()))
	}
	if len(embedding) != x.embedder.Dimensions() {
		return nil, goerr.Wrap(model.ErrEmbedding, "unexpected embedding dimension",
			goerr.V("expected", x.embedder.Dimensions()),
			goerr.V("actual", len(embedding)))
	}
	return embedding, nil
}
