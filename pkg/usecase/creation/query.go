package creation

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/vector"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

// Recent returns the newest creations of the user
func (uc *UseCase) Recent(ctx context.Context, userID string, limit int) ([]*model.CreationRecord, error) {
	return uc.memory.Recent(ctx, userID, limit)
}

// Search is keyword search over prompts, newest first
func (uc *UseCase) Search(ctx context.Context, userID, query string) ([]*model.CreationRecord, error) {
	return uc.memory.SearchMemory(ctx, userID, query)
}

func (uc *UseCase) SearchByTags(ctx context.Context, userID string, tags []string) ([]*model.CreationRecord, error) {
	return uc.memory.SearchByTags(ctx, userID, tags)
}

func (uc *UseCase) SearchByCategory(ctx context.Context, userID, category string) ([]*model.CreationRecord, error) {
	return uc.memory.SearchByCategory(ctx, userID, category)
}

func (uc *UseCase) Tags(ctx context.Context, userID string) ([]string, error) {
	return uc.memory.GetAllTags(ctx, userID)
}

func (uc *UseCase) Categories(ctx context.Context, userID string) ([]string, error) {
	return uc.memory.GetAllCategories(ctx, userID)
}

// SimilarCreation is a creation found by embedding search
type SimilarCreation struct {
	Record *model.CreationRecord
	Score  float32
}

// Similar runs embedding search restricted to the user's creations. Index
// entries whose record no longer exists are skipped.
func (uc *UseCase) Similar(ctx context.Context, userID, query string, limit int, filter *vector.Filter) ([]*SimilarCreation, error) {
	f := vector.Filter{UserID: userID}
	if filter != nil {
		f.Category = filter.Category
		f.Tags = filter.Tags
	}

	hits, err := uc.index.SearchByText(ctx, query, limit, &f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search similar creations", goerr.V("query", query))
	}

	results := make([]*SimilarCreation, 0, len(hits))
	for _, hit := range hits {
		record, err := uc.memory.RetrieveLongTerm(ctx, hit.RecordID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			logging.From(ctx).Debug("index entry without record", "creation_id", hit.RecordID)
			continue
		}
		results = append(results, &SimilarCreation{Record: record, Score: hit.Score})
	}
	return results, nil
}

// Show returns a creation or ErrNotFound
func (uc *UseCase) Show(ctx context.Context, id model.CreationID) (*model.CreationRecord, error) {
	record, err := uc.memory.RetrieveLongTerm(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", id))
	}
	return record, nil
}

// UpdateTags replaces the tags of a creation
func (uc *UseCase) UpdateTags(ctx context.Context, id model.CreationID, tags []string) (*model.CreationRecord, error) {
	return uc.memory.UpdateTags(ctx, id, tags)
}

// Delete removes a creation and its index entry. Artifacts stay in storage.
func (uc *UseCase) Delete(ctx context.Context, id model.CreationID) error {
	if err := uc.memory.Delete(ctx, id); err != nil {
		return err
	}
	if err := uc.index.Delete(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to delete index entry", "error", err, "creation_id", id)
	}
	return nil
}

// Session returns the short-term context of the user, or nil
func (uc *UseCase) Session(ctx context.Context, userID string) *model.SessionContext {
	return uc.memory.RetrieveShortTerm(ctx, userID)
}
