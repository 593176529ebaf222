package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheWrite is returned together with a result when the persistent
// write succeeded but the cache could not be brought up to date.
var ErrCacheWrite = errors.New("cache write failed")

// KeyFunc derives the cache key a created record is stored under.
type KeyFunc func(doc Document) any

// Records is a persistent collection fronted by a cache namespace.
type Records[T any] interface {
	// Get returns nil, nil when no record matches filter.
	Get(ctx context.Context, filter Filter) (*T, error)
	Create(ctx context.Context, data *T, key KeyFunc) (*T, error)
	Update(ctx context.Context, filter Filter, patch Document) error
	Remove(ctx context.Context, filter Filter) error
}

// Cache is direct access to namespaced cache entries.
type Cache interface {
	Get(ctx context.Context, namespace string, key any) (Document, error)
	Put(ctx context.Context, namespace string, key any, doc Document, ttl time.Duration) error
}
