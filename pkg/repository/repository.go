package repository

import (
	"context"

	"github.com/m-mizutani/kiln/pkg/model"
)

// Repository is the long-term catalog of creations. Implementations
// serialize writers; readers may miss a concurrent in-flight write.
type Repository interface {
	// PutCreation saves a new record. Records are immutable once written;
	// a record with an existing ID fails with ErrPersistence.
	PutCreation(ctx context.Context, record *model.CreationRecord) error

	// GetCreation retrieves a record by ID. It returns nil without error when
	// the record does not exist.
	GetCreation(ctx context.Context, id model.CreationID) (*model.CreationRecord, error)

	// ListCreations returns records of the user, newest first. An empty
	// userID lists every user.
	ListCreations(ctx context.Context, userID string) ([]*model.CreationRecord, error)

	// UpdateCreation replaces an existing record; ErrNotFound otherwise
	UpdateCreation(ctx context.Context, record *model.CreationRecord) error

	// DeleteCreation removes a record; ErrNotFound when absent
	DeleteCreation(ctx context.Context, id model.CreationID) error
}
