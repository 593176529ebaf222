// Package memory provides an in-process key-value backend for local runs
// and single-instance deployments.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/dgraph-io/ristretto"
)

// ErrRejected is returned when ristretto drops a write.
var ErrRejected = errors.New("memory: write rejected")

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes
	BufferItems int64
}

// Backend implements ports.KVBackend on a ristretto cache. Writes are
// flushed before returning so a Get right after a Set sees the value.
type Backend struct {
	mu sync.Mutex
	c  *ristretto.Cache
}

var _ ports.KVBackend = (*Backend)(nil)

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, errors.New("memory: invalid config")
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, _ := v.([]byte)
	if raw == nil {
		b.c.Del(key)
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set(key, value, ttl) {
		return ErrRejected
	}
	b.c.Wait()
	return nil
}

func (b *Backend) Del(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, found := b.c.Get(key)
	b.c.Del(key)
	b.c.Wait()
	if found {
		return 1, nil
	}
	return 0, nil
}

// SetBatch applies all entries under one lock. If ristretto rejects any of
// them the ones already written are removed again.
func (b *Backend) SetBatch(_ context.Context, entries []ports.KVEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range entries {
		if !b.set(e.Key, e.Value, e.TTL) {
			for _, prev := range entries[:i] {
				b.c.Del(prev.Key)
			}
			b.c.Wait()
			return ErrRejected
		}
	}
	b.c.Wait()
	return nil
}

func (b *Backend) set(key string, value []byte, ttl time.Duration) bool {
	v := append([]byte(nil), value...)
	cost := int64(len(key) + len(v))
	if ttl <= 0 {
		return b.c.Set(key, v, cost)
	}
	return b.c.SetWithTTL(key, v, cost, ttl)
}

func (b *Backend) Close() {
	b.c.Wait()
	b.c.Close()
}
