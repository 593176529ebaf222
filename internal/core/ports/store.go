package ports

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by Create when a unique field is already taken.
var ErrDuplicate = errors.New("duplicate document")

// ErrStoreUnavailable is returned by record handlers when the persistent
// store fails. The driver error is logged, not returned.
var ErrStoreUnavailable = errors.New("store unavailable")

// Document is a persisted record in its field-name form.
type Document map[string]any

// Filter is a set of field-equality predicates.
type Filter map[string]any

// DocumentStore is one persistent collection.
type DocumentStore interface {
	// FindOne returns the first document matching filter, or nil when none does.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// Create inserts data and returns the stored document with its assigned id.
	Create(ctx context.Context, data Document) (Document, error)
	UpdateOne(ctx context.Context, filter Filter, patch Document) error
	DeleteOne(ctx context.Context, filter Filter) error
	Name() string
}
