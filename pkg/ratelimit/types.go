package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is within the limit.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
// Returns 0 if the current request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter is the interface rate limiting implementations satisfy.
type Limiter interface {
	// Allow checks whether one request is allowed for the key, consuming a
	// slot if so.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the counter for the key.
	Reset(ctx context.Context, key string) error
}

// Store is the counter backend. Counters self-expire after the window; a
// restart losing them fails open toward availability.
type Store interface {
	// IncrementAndGet atomically increments the counter for the key,
	// starting a fresh window when none is active, and returns the new
	// value together with the time left in the window.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (current int64, ttl time.Duration, err error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error
}
