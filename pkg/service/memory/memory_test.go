package memory_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/repository"
	"github.com/m-mizutani/kiln/pkg/service/memory"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	repo, err := repository.NewFile(filepath.Join(t.TempDir(), "creations.jsonl"))
	gt.NoError(t, err)

	store, err := memory.New(repo)
	gt.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(userID, prompt string, minutes int, tags, categories []string, primary string) *model.CreationRecord {
	return &model.CreationRecord{
		ID:              model.NewCreationID(),
		RequestID:       model.NewRequestID(),
		UserID:          userID,
		Prompt:          prompt,
		ExpandedPrompt:  prompt,
		ImagePath:       "out/" + prompt + ".png",
		Tags:            tags,
		Categories:      categories,
		PrimaryCategory: primary,
		Status:          model.StatusPartialImageOnly,
		CreatedAt:       baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func seed(t *testing.T, store *memory.Store) []*model.CreationRecord {
	t.Helper()
	records := []*model.CreationRecord{
		record("alice", "a glowing dragon on a cliff at sunset", 0, []string{"fantasy", "glowing", "landscape"}, []string{"landscape", "fantasy"}, "landscape"),
		record("alice", "a red dragon guarding a castle", 1, []string{"architecture", "fantasy", "red"}, []string{"fantasy", "architecture"}, "fantasy"),
		record("alice", "a chocolate cake", 2, []string{"food"}, []string{"food"}, "food"),
		record("bob", "a dragon kite", 3, []string{"fantasy"}, []string{"fantasy"}, "fantasy"),
	}
	for _, r := range records {
		id, err := store.StoreLongTerm(context.Background(), r)
		gt.NoError(t, err)
		gt.Equal(t, id, r.ID)
	}
	return records
}

func TestShortTerm(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	gt.V(t, store.RetrieveShortTerm(ctx, "session-1")).Nil()

	store.StoreShortTerm(ctx, "session-1", &model.SessionContext{Prompt: "first"})
	store.StoreShortTerm(ctx, "session-1", &model.SessionContext{Prompt: "second", Attachments: []string{"a.png"}})
	store.StoreShortTerm(ctx, "session-2", &model.SessionContext{Prompt: "other"})

	got := store.RetrieveShortTerm(ctx, "session-1")
	gt.V(t, got).NotNil()
	gt.Equal(t, got.Prompt, "second")
	gt.False(t, got.UpdatedAt.IsZero())

	// callers get copies
	got.Attachments[0] = "mutated"
	gt.Equal(t, store.RetrieveShortTerm(ctx, "session-1").Attachments[0], "a.png")

	gt.Equal(t, store.RetrieveShortTerm(ctx, "session-2").Prompt, "other")
}

func TestShortTermHoldsManySessions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	const sessions = 1000
	for i := 0; i < sessions; i++ {
		store.StoreShortTerm(ctx, fmt.Sprintf("user-%d", i), &model.SessionContext{
			Prompt: fmt.Sprintf("prompt %d", i),
		})
	}

	var missing int
	for i := 0; i < sessions; i++ {
		got := store.RetrieveShortTerm(ctx, fmt.Sprintf("user-%d", i))
		if got == nil || got.Prompt != fmt.Sprintf("prompt %d", i) {
			missing++
		}
	}
	gt.Equal(t, missing, 0)
}

func TestRetrieveLongTerm(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	got, err := store.RetrieveLongTerm(ctx, records[0].ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Prompt, records[0].Prompt)

	got, err = store.RetrieveLongTerm(ctx, model.NewCreationID())
	gt.NoError(t, err)
	gt.V(t, got).Nil()
}

func TestRecent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	recent, err := store.Recent(ctx, "alice", 2)
	gt.NoError(t, err)
	gt.A(t, recent).Length(2)
	gt.Equal(t, recent[0].ID, records[2].ID)
	gt.Equal(t, recent[1].ID, records[1].ID)

	all, err := store.Recent(ctx, "alice", 0)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)
}

func TestSearchMemory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	hits, err := store.SearchMemory(ctx, "alice", "Dragon")
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)
	// most recent first
	gt.Equal(t, hits[0].ID, records[1].ID)
	gt.Equal(t, hits[1].ID, records[0].ID)

	hits, err = store.SearchMemory(ctx, "alice", "dragon sunset")
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].ID, records[0].ID)

	hits, err = store.SearchMemory(ctx, "alice", "unicorn")
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	hits, err = store.SearchMemory(ctx, "alice", "  ")
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)
}

func TestSearchByTagsAndCategory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	hits, err := store.SearchByTags(ctx, "alice", []string{"RED", "food"})
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].ID, records[2].ID)
	gt.Equal(t, hits[1].ID, records[1].ID)

	hits, err = store.SearchByTags(ctx, "alice", nil)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	// non-primary membership counts
	hits, err = store.SearchByCategory(ctx, "alice", "fantasy")
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)

	hits, err = store.SearchByCategory(ctx, "bob", "fantasy")
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
}

func TestGetAllTagsAndCategories(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seed(t, store)

	tags, err := store.GetAllTags(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, tags, []string{"architecture", "fantasy", "food", "glowing", "landscape", "red"})

	categories, err := store.GetAllCategories(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, categories, []string{"architecture", "fantasy", "food", "landscape"})

	tags, err = store.GetAllTags(ctx, "nobody")
	gt.NoError(t, err)
	gt.A(t, tags).Length(0)
}

func TestUpdateTags(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	updated, err := store.UpdateTags(ctx, records[2].ID, []string{"Dessert", "food", "dessert"})
	gt.NoError(t, err)
	gt.Equal(t, updated.Tags, []string{"dessert", "food"})

	got, err := store.RetrieveLongTerm(ctx, records[2].ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Tags, []string{"dessert", "food"})
	// immutable fields untouched
	gt.Equal(t, got.Prompt, records[2].Prompt)
	gt.True(t, got.CreatedAt.Equal(records[2].CreatedAt))

	_, err = store.UpdateTags(ctx, model.NewCreationID(), []string{"x"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	records := seed(t, store)

	gt.NoError(t, store.Delete(ctx, records[0].ID))
	got, err := store.RetrieveLongTerm(ctx, records[0].ID)
	gt.NoError(t, err)
	gt.V(t, got).Nil()

	err = store.Delete(ctx, records[0].ID)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

type failingRepo struct {
	repository.Repository
}

func (failingRepo) PutCreation(ctx context.Context, record *model.CreationRecord) error {
	return errors.New("disk full")
}

func TestStoreLongTermFailure(t *testing.T) {
	store, err := memory.New(failingRepo{})
	gt.NoError(t, err)
	defer store.Close()

	_, err = store.StoreLongTerm(context.Background(), record("alice", "a dragon", 0, nil, nil, ""))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrPersistence))
}
