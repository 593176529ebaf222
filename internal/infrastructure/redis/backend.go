package redis

import (
	"context"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/go-redis/redis/v8"
)

// Backend implements ports.KVBackend using a Redis client.
type Backend struct {
	r redis.Cmdable
	// optional key prefix to namespace entries
	prefix string
}

var _ ports.KVBackend = (*Backend)(nil)

// NewBackend creates a new Redis-backed key-value backend.
func NewBackend(r redis.Cmdable, prefix string) *Backend {
	return &Backend{r: r, prefix: prefix}
}

func (b *Backend) prefixed(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

// Get implements KVBackend.Get.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.r.Get(ctx, b.prefixed(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements KVBackend.Set.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.r.Set(ctx, b.prefixed(key), value, ttl).Err()
}

// Del implements KVBackend.Del.
func (b *Backend) Del(ctx context.Context, key string) (int64, error) {
	return b.r.Del(ctx, b.prefixed(key)).Result()
}

// SetBatch writes every entry inside one MULTI/EXEC transaction.
func (b *Backend) SetBatch(ctx context.Context, entries []ports.KVEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := b.r.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, b.prefixed(e.Key), e.Value, e.TTL)
		}
		return nil
	})
	return err
}
