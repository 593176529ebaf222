package cache

import (
	"context"
	"errors"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures BreakerBackend.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // requests allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32        // requests observed before the ratio applies
	FailureRatio float64
}

// BreakerBackend wraps a KVBackend with a circuit breaker. While the circuit
// is open every call fails fast with ErrUnavailable, so callers go straight
// to the persistent store instead of waiting on backend timeouts.
type BreakerBackend struct {
	next    ports.KVBackend
	cb      *gobreaker.CircuitBreaker
	logger  *logrus.Logger
	metrics *Metrics
}

var _ ports.KVBackend = (*BreakerBackend)(nil)

func NewBreakerBackend(next ports.KVBackend, settings BreakerSettings, logger *logrus.Logger, metrics *Metrics) *BreakerBackend {
	if settings.Name == "" {
		settings.Name = "cache"
	}
	b := &BreakerBackend{next: next, logger: logger, metrics: metrics}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.metrics.breakerState(name, to)
			if b.logger != nil {
				b.logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("cache: circuit breaker state changed")
			}
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	metrics.breakerState(settings.Name, gobreaker.StateClosed)
	return b
}

// State reports the current breaker state.
func (b *BreakerBackend) State() gobreaker.State {
	return b.cb.State()
}

type getResult struct {
	value []byte
	ok    bool
}

func (b *BreakerBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		v, ok, err := b.next.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: v, ok: ok}, nil
	})
	if err != nil {
		return nil, false, b.wrap(err)
	}
	r := res.(getResult)
	return r.value, r.ok, nil
}

func (b *BreakerBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return b.wrap(err)
}

func (b *BreakerBackend) Del(ctx context.Context, key string) (int64, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Del(ctx, key)
	})
	if err != nil {
		return 0, b.wrap(err)
	}
	return res.(int64), nil
}

func (b *BreakerBackend) SetBatch(ctx context.Context, entries []ports.KVEntry) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SetBatch(ctx, entries)
	})
	return b.wrap(err)
}

func (b *BreakerBackend) wrap(err error) error {
	if err == nil {
		return nil
	}
	return unavailable("backend", err)
}
