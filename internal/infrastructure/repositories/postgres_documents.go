package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/db"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

const (
	findDocumentQuery = `
		SELECT doc FROM documents
		WHERE collection = $1 AND doc @> $2::jsonb
		LIMIT 1`

	insertDocumentQuery = `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, $3::jsonb)`

	updateDocumentQuery = `
		UPDATE documents SET doc = doc || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = (
			SELECT id FROM documents WHERE collection = $1 AND doc @> $2::jsonb LIMIT 1
		)`

	deleteDocumentQuery = `
		DELETE FROM documents
		WHERE collection = $1 AND id = (
			SELECT id FROM documents WHERE collection = $1 AND doc @> $2::jsonb LIMIT 1
		)`
)

// PostgresDocuments stores one collection as JSONB rows of the shared
// documents table. Filters match by JSONB containment, which is field
// equality for scalar values.
type PostgresDocuments struct {
	db         *db.Database
	collection string
	logger     *logrus.Logger
}

var _ ports.DocumentStore = (*PostgresDocuments)(nil)

// NewPostgresDocuments creates a document store for collection
func NewPostgresDocuments(database *db.Database, collection string, logger *logrus.Logger) *PostgresDocuments {
	return &PostgresDocuments{
		db:         database,
		collection: collection,
		logger:     logger,
	}
}

func (r *PostgresDocuments) Name() string { return r.collection }

// FindOne returns the first document matching filter
func (r *PostgresDocuments) FindOne(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	var raw []byte
	err = r.db.DB.GetContext(ctx, &raw, findDocumentQuery, r.collection, string(filterJSON))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"collection": r.collection}).WithError(err).Error("db: failed to find document")
		}
		return nil, fmt.Errorf("failed to find %s document: %w", r.collection, err)
	}

	var doc ports.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", r.collection, err)
	}
	return doc, nil
}

// Create inserts data under a new id
func (r *PostgresDocuments) Create(ctx context.Context, data ports.Document) (ports.Document, error) {
	id := uuid.New()
	doc := make(ports.Document, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	doc["id"] = id.String()

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s document: %w", r.collection, err)
	}

	if _, err := r.db.DB.ExecContext(ctx, insertDocumentQuery, r.collection, id, string(b)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%s: %w", r.collection, ports.ErrDuplicate)
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"collection": r.collection, "id": id}).WithError(err).Error("db: failed to create document")
		}
		return nil, fmt.Errorf("failed to create %s document: %w", r.collection, err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"collection": r.collection, "id": id}).Debug("db: document created")
	}

	// hand back the stored form, as FindOne would
	var stored ports.Document
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", r.collection, err)
	}
	return stored, nil
}

// UpdateOne merges patch into the first document matching filter. The id is never changed.
func (r *PostgresDocuments) UpdateOne(ctx context.Context, filter ports.Filter, patch ports.Document) error {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	patchJSON, err := json.Marshal(withoutID(patch))
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	res, err := r.db.DB.ExecContext(ctx, updateDocumentQuery, r.collection, string(filterJSON), string(patchJSON))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", r.collection, ports.ErrDuplicate)
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"collection": r.collection}).WithError(err).Error("db: failed to update document")
		}
		return fmt.Errorf("failed to update %s document: %w", r.collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 && r.logger != nil {
		r.logger.WithFields(logrus.Fields{"collection": r.collection}).Debug("db: update matched no document")
	}
	return nil
}

// DeleteOne removes the first document matching filter
func (r *PostgresDocuments) DeleteOne(ctx context.Context, filter ports.Filter) error {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	if _, err := r.db.DB.ExecContext(ctx, deleteDocumentQuery, r.collection, string(filterJSON)); err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"collection": r.collection}).WithError(err).Error("db: failed to delete document")
		}
		return fmt.Errorf("failed to delete %s document: %w", r.collection, err)
	}
	return nil
}

func withoutID(patch ports.Document) ports.Document {
	if _, ok := patch["id"]; !ok {
		return patch
	}
	out := make(ports.Document, len(patch))
	for k, v := range patch {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}
