package ports

import (
	"context"
	"time"
)

// RateLimitRepository provides low-level atomic operations for rate limiting counters.
// Implementations must be safe for concurrent use.
type RateLimitRepository interface {
	// IncrementWindow atomically increments the counter of key in the current window
	// and ensures it expires after ttl. Returns the updated count and the window start.
	IncrementWindow(ctx context.Context, key string, window, ttl time.Duration) (count int, windowStart time.Time, err error)
}

// RateLimiterService limits requests per client key (for example "ip:203.0.113.7").
type RateLimiterService interface {
	// Allow consumes one request unit for key and reports whether it is permitted.
	// remaining: requests still allowed in the current window after this one (>=0)
	// limit: configured max requests per window
	// reset: when the current window ends
	Allow(ctx context.Context, key string) (allowed bool, remaining int, limit int, reset time.Time, err error)
}
