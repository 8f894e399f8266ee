package repository

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionCreations = "creations"

// Firestore implements Repository on Cloud Firestore. Each record is a
// document in the "creations" collection keyed by its ID.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close closes the Firestore client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) doc(id model.CreationID) *firestore.DocumentRef {
	return r.client.Collection(collectionCreations).Doc(id.String())
}

func (r *Firestore) PutCreation(ctx context.Context, record *model.CreationRecord) error {
	if err := record.Validate(); err != nil {
		return goerr.Wrap(err, "invalid creation record")
	}
	if _, err := r.doc(record.ID).Create(ctx, record); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(model.ErrPersistence, "creation already exists", goerr.V("id", record.ID))
		}
		return goerr.Wrap(model.ErrPersistence, "failed to put creation",
			goerr.V("id", record.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *Firestore) GetCreation(ctx context.Context, id model.CreationID) (*model.CreationRecord, error) {
	snap, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(model.ErrPersistence, "failed to get creation",
			goerr.V("id", id), goerr.V("cause", err.Error()))
	}

	var record model.CreationRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to decode creation",
			goerr.V("id", id), goerr.V("cause", err.Error()))
	}
	return &record, nil
}

func (r *Firestore) ListCreations(ctx context.Context, userID string) ([]*model.CreationRecord, error) {
	query := r.client.Collection(collectionCreations).Query
	if userID != "" {
		query = query.Where("UserID", "==", userID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []*model.CreationRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrPersistence, "failed to iterate creations",
				goerr.V("user_id", userID), goerr.V("cause", err.Error()))
		}

		var record model.CreationRecord
		if err := snap.DataTo(&record); err != nil {
			return nil, goerr.Wrap(model.ErrPersistence, "failed to decode creation",
				goerr.V("doc", snap.Ref.ID), goerr.V("cause", err.Error()))
		}
		records = append(records, &record)
	}

	// ordering in memory avoids a composite index on (UserID, CreatedAt)
	sortNewestFirst(records)
	return records, nil
}

func (r *Firestore) UpdateCreation(ctx context.Context, record *model.CreationRecord) error {
	if err := record.Validate(); err != nil {
		return goerr.Wrap(err, "invalid creation record")
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(record.ID)
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current model.CreationRecord
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.Prompt != record.Prompt || !current.CreatedAt.Equal(record.CreatedAt) {
			return goerr.Wrap(model.ErrPersistence, "prompt and created_at are immutable", goerr.V("id", record.ID))
		}
		return tx.Set(ref, record)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", record.ID))
		}
		if errors.Is(err, model.ErrPersistence) {
			return err
		}
		return goerr.Wrap(model.ErrPersistence, "failed to update creation",
			goerr.V("id", record.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *Firestore) DeleteCreation(ctx context.Context, id model.CreationID) error {
	// Exists precondition turns a missing document into NotFound
	if _, err := r.doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "creation not found", goerr.V("id", id))
		}
		return goerr.Wrap(model.ErrPersistence, "failed to delete creation",
			goerr.V("id", id), goerr.V("cause", err.Error()))
	}
	return nil
}
