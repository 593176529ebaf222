// Package background runs detached tasks whose outcome the caller never waits
// for. Failures are reported to the logger.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/sirupsen/logrus"
)

type job struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context) error
}

// Runner is a bounded worker queue. Tasks submitted while the queue is full
// or after Close are dropped with a warning.
type Runner struct {
	q       chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	timeout time.Duration
	logger  *logrus.Logger
}

var _ ports.TaskRunner = (*Runner)(nil)

func NewRunner(workers, queueSize int, timeout time.Duration, logger *logrus.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Runner{q: make(chan job, queueSize), timeout: timeout, logger: logger}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer r.wg.Done()
			for j := range r.q {
				r.run(j)
			}
		}()
	}
	return r
}

// Go queues task. The task context carries no cancellation from the
// submitter, only the runner timeout.
func (r *Runner) Go(name string, task func(ctx context.Context) error) {
	r.GoContext(context.Background(), name, task)
}

// GoContext is like Go but keeps the values (not the cancellation) of parent.
func (r *Runner) GoContext(parent context.Context, name string, task func(ctx context.Context) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.warn(name, "background: runner closed, task dropped")
		return
	}
	select {
	case r.q <- job{name: name, ctx: context.WithoutCancel(parent), fn: task}:
	default:
		r.warn(name, "background: queue full, task dropped")
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (r *Runner) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.q)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Runner) run(j job) {
	ctx := j.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return j.fn(ctx)
	}()

	if err != nil && r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"task":     j.name,
			"duration": time.Since(start).String(),
		}).WithError(err).Warn("background: task failed")
	}
}

func (r *Runner) warn(name, msg string) {
	if r.logger != nil {
		r.logger.WithField("task", name).Warn(msg)
	}
}
