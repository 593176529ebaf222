package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
)

// RateLimitRedisRepository implements rate limiting counter storage with Redis.
type RateLimitRedisRepository struct {
	r      redis.Cmdable
	prefix string
}

var _ ports.RateLimitRepository = (*RateLimitRedisRepository)(nil)

func NewRateLimitRedisRepository(r redis.Cmdable, prefix string) *RateLimitRedisRepository {
	return &RateLimitRedisRepository{r: r, prefix: prefix}
}

// IncrementWindow increments a per-key counter for a fixed window.
func (repo *RateLimitRedisRepository) IncrementWindow(ctx context.Context, key string, window, ttl time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Truncate(window)
	k := fmt.Sprintf("%s:%s:%d", repo.prefix, key, windowStart.Unix())
	pipe := repo.r.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, windowStart, err
	}
	return int(incr.Val()), windowStart, nil
}

// RateLimitMemoryRepository keeps the counters in process. Used when the
// cache runs without Redis; limits then apply per instance.
type RateLimitMemoryRepository struct {
	mu        sync.Mutex
	counters  map[string]windowCounter
	nextSweep time.Time
	now       func() time.Time
}

type windowCounter struct {
	count   int
	expires time.Time
}

var _ ports.RateLimitRepository = (*RateLimitMemoryRepository)(nil)

// NewRateLimitMemoryRepository uses time.Now when now is nil.
func NewRateLimitMemoryRepository(now func() time.Time) *RateLimitMemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &RateLimitMemoryRepository{counters: make(map[string]windowCounter), now: now}
}

func (repo *RateLimitMemoryRepository) IncrementWindow(_ context.Context, key string, window, ttl time.Duration) (int, time.Time, error) {
	now := repo.now()
	windowStart := now.Truncate(window)
	k := fmt.Sprintf("%s:%d", key, windowStart.Unix())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if now.After(repo.nextSweep) {
		for ck, c := range repo.counters {
			if now.After(c.expires) {
				delete(repo.counters, ck)
			}
		}
		repo.nextSweep = now.Add(window)
	}
	c := repo.counters[k]
	c.count++
	c.expires = now.Add(ttl)
	repo.counters[k] = c
	return c.count, windowStart, nil
}
