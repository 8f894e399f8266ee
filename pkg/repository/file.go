package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
)

type catalogOp string

const (
	opPut    catalogOp = "put"
	opDelete catalogOp = "delete"
)

// catalogEntry is one line of the catalog file
type catalogEntry struct {
	Op     catalogOp             `json:"op"`
	ID     model.CreationID      `json:"id"`
	Record *model.CreationRecord `json:"record,omitempty"`
	At     time.Time             `json:"at"`
}

// File is a Repository on an append-only JSON lines file. Every write is a
// single appended line followed by fsync, so a crash never rewrites existing
// records. The whole catalog is folded into memory at open.
type File struct {
	path string

	mu      sync.RWMutex
	records map[model.CreationID]*model.CreationRecord
}

// NewFile opens (or creates on first write) the catalog at path
func NewFile(path string) (*File, error) {
	r := &File{
		path:    path,
		records: make(map[model.CreationID]*model.CreationRecord),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *File) load() error {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to open catalog",
			goerr.V("path", r.path), goerr.V("cause", err.Error()))
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var entry catalogEntry
			if jsonErr := json.Unmarshal(line, &entry); jsonErr != nil {
				return goerr.Wrap(model.ErrPersistence, "corrupt catalog entry",
					goerr.V("path", r.path), goerr.V("line", lineNo), goerr.V("cause", jsonErr.Error()))
			}
			if applyErr := r.apply(entry); applyErr != nil {
				return goerr.Wrap(model.ErrPersistence, "invalid catalog entry",
					goerr.V("path", r.path), goerr.V("line", lineNo), goerr.V("cause", applyErr.Error()))
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(model.ErrPersistence, "failed to read catalog",
				goerr.V("path", r.path), goerr.V("cause", err.Error()))
		}
	}
}

func (r *File) apply(entry catalogEntry) error {
	switch entry.Op {
	case opPut:
		if entry.Record == nil || entry.Record.ID != entry.ID {
			return goerr.New("put entry without matching record", goerr.V("id", entry.ID))
		}
		r.records[entry.ID] = entry.Record
	case opDelete:
		delete(r.records, entry.ID)
	default:
		return goerr.New("unknown catalog operation", goerr.V("op", entry.Op))
	}
	return nil
}

// appendEntry must be called with r.mu held for writing
func (r *File) appendEntry(entry catalogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to marshal catalog entry",
			goerr.V("id", entry.ID), goerr.V("cause", err.Error()))
	}
	line = append(line, '\n')

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(model.ErrPersistence, "failed to create catalog directory",
				goerr.V("dir", dir), goerr.V("cause", err.Error()))
		}
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to open catalog for append",
			goerr.V("path", r.path), goerr.V("cause", err.Error()))
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to append catalog entry",
			goerr.V("path", r.path), goerr.V("cause", err.Error()))
	}
	if err := f.Sync(); err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to sync catalog",
			goerr.V("path", r.path), goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *File) PutCreation(ctx context.Context, record *model.CreationRecord) error {
	if err := record.Validate(); err != nil {
		return goerr.Wrap(err, "invalid creation record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; ok {
		return goerr.Wrap(model.ErrPersistence, "creation already exists", goerr.V("id", record.ID))
	}

	stored := record.Copy()
	if err := r.appendEntry(catalogEntry{Op: opPut, ID: stored.ID, Record: stored, At: time.Now().UTC()}); err != nil {
		return err
	}
	r.records[stored.ID] = stored

	logging.From(ctx).Debug("creation saved", "id", stored.ID, "user_id", stored.UserID)
	return nil
}

func (r *File) GetCreation(ctx context.Context, id model.CreationID) (*model.CreationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id].Copy(), nil
}

func (r *File) ListCreations(ctx context.Context, userID string) ([]*model.CreationRecord, error) {
	r.mu.RLock()
	records := make([]*model.CreationRecord, 0, len(r.records))
	for _, rec := range r.records {
		if userID == "" || rec.UserID == userID {
			records = append(records, rec.Copy())
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(records)
	return records, nil
}

func (r *File) UpdateCreation(ctx context.Context, record *model.CreationRecord) error {
	if err := record.Validate(); err != nil {
		return goerr.Wrap(err, "invalid creation record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[record.ID]
	if !ok {
		return goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", record.ID))
	}
	if current.Prompt != record.Prompt || !current.CreatedAt.Equal(record.CreatedAt) {
		return goerr.Wrap(model.ErrPersistence, "prompt and created_at are immutable", goerr.V("id", record.ID))
	}

	stored := record.Copy()
	if err := r.appendEntry(catalogEntry{Op: opPut, ID: stored.ID, Record: stored, At: time.Now().UTC()}); err != nil {
		return err
	}
	r.records[stored.ID] = stored
	return nil
}

func (r *File) DeleteCreation(ctx context.Context, id model.CreationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", id))
	}
	if err := r.appendEntry(catalogEntry{Op: opDelete, ID: id, At: time.Now().UTC()}); err != nil {
		return err
	}
	delete(r.records, id)
	return nil
}

// sortNewestFirst orders by creation time descending, ID breaking ties
func sortNewestFirst(records []*model.CreationRecord) {
	slices.SortStableFunc(records, func(a, b *model.CreationRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
