package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/repositories"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type failingCounter struct{}

func (failingCounter) IncrementWindow(ctx context.Context, key string, window, ttl time.Duration) (int, time.Time, error) {
	return 0, time.Now().Truncate(window), errors.New("redis: connection refused")
}

func newLimiter(c *clock, perWindow int) *services.RateLimiterService {
	repo := repositories.NewRateLimitMemoryRepository(c.now)
	return services.NewRateLimiterService(repo, &services.RateLimiterConfig{RequestsPerWindow: perWindow, Window: time.Minute}, nil)
}

func TestRateLimiter_DeniesPastLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)}
	rl := newLimiter(c, 2)

	allowed, remaining, limit, reset, err := rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.Equal(t, 2, limit)
	require.Equal(t, time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), reset)

	allowed, remaining, _, _, err = rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, remaining, _, _, err = rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, _, _, _, err = rl.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiter_WindowRollsOver(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 50, 0, time.UTC)}
	rl := newLimiter(c, 1)

	allowed, _, _, _, _ := rl.Allow(ctx, "ip:10.0.0.1")
	require.True(t, allowed)
	allowed, _, _, _, _ = rl.Allow(ctx, "ip:10.0.0.1")
	require.False(t, allowed)

	c.t = c.t.Add(15 * time.Second)
	allowed, _, _, reset, err := rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, time.Date(2024, 3, 1, 12, 2, 0, 0, time.UTC), reset)
}

func TestRateLimiter_BurstMultiplier(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewRateLimitMemoryRepository((&clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}).now)
	rl := services.NewRateLimiterService(repo, &services.RateLimiterConfig{RequestsPerWindow: 2, BurstMultiplier: 1.5, Window: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		allowed, _, limit, _, err := rl.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2, limit)
	}
	allowed, _, _, _, _ := rl.Allow(ctx, "ip:10.0.0.1")
	require.False(t, allowed)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := services.NewRateLimiterService(failingCounter{}, nil, nil)

	allowed, remaining, limit, _, err := rl.Allow(context.Background(), "ip:10.0.0.1")
	require.Error(t, err)
	require.True(t, allowed)
	require.Equal(t, 100, limit)
	require.Equal(t, 100, remaining)
}
