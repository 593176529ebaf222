package ports

import "context"

// TaskRunner runs detached background tasks. Callers never wait for the
// result; failures are reported by the runner itself.
type TaskRunner interface {
	Go(name string, task func(ctx context.Context) error)
}
