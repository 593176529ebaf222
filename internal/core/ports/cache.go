package ports

import (
	"context"
	"time"
)

// KVEntry is one key written by KVBackend.SetBatch.
type KVEntry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// KVBackend defines the raw key-value contract the record cache is built on.
// Implementations return an error only for backend failures; a missing key is ok=false.
type KVBackend interface {
	// Get returns the raw bytes for key. ok=false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for key with TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes the key and reports how many keys were removed.
	Del(ctx context.Context, key string) (int64, error)
	// SetBatch writes all entries as one atomic unit.
	SetBatch(ctx context.Context, entries []KVEntry) error
}
