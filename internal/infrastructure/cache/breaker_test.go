package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
	"github.com/GX-mob/gx-service-template/test/mocks"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func TestBreakerBackend_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	kv := mocks.NewMemoryKV()
	b := cache.NewBreakerBackend(kv, cache.BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Hour,
		MinRequests:  3,
		FailureRatio: 0.5,
	}, nil, nil)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	kv.GetErr = errors.New("connection reset")
	for i := 0; i < 3; i++ {
		_, _, err := b.Get(ctx, "k")
		require.ErrorIs(t, err, cache.ErrUnavailable)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	// open circuit fails fast without touching the backend
	kv.GetErr = nil
	gets := kv.Gets
	_, _, err = b.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrUnavailable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, gets, kv.Gets)
}

func TestBreakerBackend_CanceledContextDoesNotTrip(t *testing.T) {
	kv := mocks.NewMemoryKV()
	kv.GetErr = context.Canceled
	b := cache.NewBreakerBackend(kv, cache.BreakerSettings{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, MinRequests: 1, FailureRatio: 0.1,
	}, nil, nil)

	for i := 0; i < 5; i++ {
		_, _, _ = b.Get(context.Background(), "k")
	}
	require.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerBackend_DelAndBatchPassThrough(t *testing.T) {
	ctx := context.Background()
	kv := mocks.NewMemoryKV()
	b := cache.NewBreakerBackend(kv, cache.BreakerSettings{MinRequests: 10, FailureRatio: 1}, nil, nil)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	n, err := b.Del(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 0, kv.Batches)
}
