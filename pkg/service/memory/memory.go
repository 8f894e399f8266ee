// Package memory provides the two-tier memory of the creation pipeline: a
// process-lifetime short-term session cache and the long-term catalog of
// creations.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/repository"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	defaultMaxSession = 10000
)

// Store is the MemoryStore. Short-term entries are lost on restart; long-term
// records live in the repository.
type Store struct {
	repo       repository.Repository
	sessions   *ristretto.Cache
	sessionTTL time.Duration
	maxSession int64
}

type Option func(*Store)

// WithSessionTTL sets how long a session context survives without update
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.sessionTTL = ttl
	}
}

// WithMaxSessions bounds the number of cached session contexts
func WithMaxSessions(n int64) Option {
	return func(s *Store) {
		s.maxSession = n
	}
}

func New(repo repository.Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:       repo,
		sessionTTL: DefaultSessionTTL,
		maxSession: defaultMaxSession,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		// each session costs 1, so MaxCost is the session count
		NumCounters:        s.maxSession * 10,
		MaxCost:            s.maxSession,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session cache")
	}
	s.sessions = cache

	return s, nil
}

// Close releases the session cache
func (s *Store) Close() {
	s.sessions.Close()
}

// StoreShortTerm replaces the session context of sessionID
func (s *Store) StoreShortTerm(ctx context.Context, sessionID string, data *model.SessionContext) {
	entry := data.Copy()
	entry.UpdatedAt = time.Now()

	if !s.sessions.SetWithTTL(sessionID, entry, 1, s.sessionTTL) {
		logging.From(ctx).Warn("session context dropped by cache", "session_id", sessionID)
	}
	// make the write visible to the next read
	s.sessions.Wait()
}

// RetrieveShortTerm returns the session context of sessionID, or nil
func (s *Store) RetrieveShortTerm(ctx context.Context, sessionID string) *model.SessionContext {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	data, ok := v.(*model.SessionContext)
	if !ok {
		return nil
	}
	return data.Copy()
}

// StoreLongTerm appends the record to the catalog and returns its ID
func (s *Store) StoreLongTerm(ctx context.Context, record *model.CreationRecord) (model.CreationID, error) {
	if err := s.repo.PutCreation(ctx, record); err != nil {
		if errors.Is(err, model.ErrPersistence) {
			return "", err
		}
		return "", goerr.Wrap(model.ErrPersistence, "failed to store creation",
			goerr.V("id", record.ID), goerr.V("cause", err.Error()))
	}
	return record.ID, nil
}

// RetrieveLongTerm returns the record or nil when it does not exist
func (s *Store) RetrieveLongTerm(ctx context.Context, id model.CreationID) (*model.CreationRecord, error) {
	record, err := s.repo.GetCreation(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve creation", goerr.V("id", id))
	}
	return record, nil
}

// Recent returns the newest records of the user. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]*model.CreationRecord, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	return head(records, limit), nil
}

// SearchMemory matches query against prompt and expanded prompt, newest
// first. A record matches when it contains the whole query or every word of
// it, case-insensitively.
func (s *Store) SearchMemory(ctx context.Context, userID, query string) ([]*model.CreationRecord, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []*model.CreationRecord{}, nil
	}
	words := strings.Fields(query)

	return s.filter(ctx, userID, func(r *model.CreationRecord) bool {
		text := strings.ToLower(r.Prompt + "\n" + r.ExpandedPrompt)
		if strings.Contains(text, query) {
			return true
		}
		for _, w := range words {
			if !strings.Contains(text, w) {
				return false
			}
		}
		return true
	})
}

// SearchByTags returns records whose tag set intersects tags
func (s *Store) SearchByTags(ctx context.Context, userID string, tags []string) ([]*model.CreationRecord, error) {
	wanted := normalizeTags(tags)
	if len(wanted) == 0 {
		return []*model.CreationRecord{}, nil
	}
	return s.filter(ctx, userID, func(r *model.CreationRecord) bool {
		return slices.ContainsFunc(wanted, r.HasTag)
	})
}

// SearchByCategory returns records in the category, primary or not
func (s *Store) SearchByCategory(ctx context.Context, userID, category string) ([]*model.CreationRecord, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return s.filter(ctx, userID, func(r *model.CreationRecord) bool {
		return r.InCategory(category)
	})
}

// GetAllTags returns the distinct tags of the user's records, sorted
func (s *Store) GetAllTags(ctx context.Context, userID string) ([]string, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, r := range records {
		tags = append(tags, r.Tags...)
	}
	return distinct(tags), nil
}

// GetAllCategories returns the distinct categories of the user's records
func (s *Store) GetAllCategories(ctx context.Context, userID string) ([]string, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	var categories []string
	for _, r := range records {
		categories = append(categories, r.Categories...)
		if r.PrimaryCategory != "" {
			categories = append(categories, r.PrimaryCategory)
		}
	}
	return distinct(categories), nil
}

// UpdateTags replaces the tag set of a record and returns the updated record
func (s *Store) UpdateTags(ctx context.Context, id model.CreationID, tags []string) (*model.CreationRecord, error) {
	record, err := s.repo.GetCreation(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load creation", goerr.V("id", id))
	}
	if record == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", id))
	}

	record.Tags = normalizeTags(tags)
	if err := s.repo.UpdateCreation(ctx, record); err != nil {
		return nil, goerr.Wrap(err, "failed to update tags", goerr.V("id", id))
	}
	return record, nil
}

// Delete removes a record from the catalog
func (s *Store) Delete(ctx context.Context, id model.CreationID) error {
	if err := s.repo.DeleteCreation(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete creation", goerr.V("id", id))
	}
	return nil
}

func (s *Store) list(ctx context.Context, userID string) ([]*model.CreationRecord, error) {
	records, err := s.repo.ListCreations(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list creations", goerr.V("user_id", userID))
	}
	return records, nil
}

func (s *Store) filter(ctx context.Context, userID string, match func(*model.CreationRecord) bool) ([]*model.CreationRecord, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.CreationRecord, 0, len(records))
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func head(records []*model.CreationRecord, limit int) []*model.CreationRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return distinct(out)
}

func distinct(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}
