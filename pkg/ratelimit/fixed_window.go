package ratelimit

import (
	"context"
	"time"
)

// FixedWindow implements a fixed-window counter: the first hit on a key
// opens a window, every hit increments the counter, and the key expires with
// the window. Cheap and predictable; the burst at window boundaries is an
// accepted tradeoff for abuse throttling.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
}

// NewFixedWindow creates a fixed-window rate limiter.
func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &FixedWindow{
		store:  store,
		limit:  limit,
		window: window,
	}, nil
}

// Allow consumes one slot for the key and reports whether it fit the limit.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, ttl, err := fw.store.IncrementAndGet(ctx, key, fw.window)
	if err != nil {
		return nil, err
	}

	remaining := fw.limit - int(current)
	return &Result{
		Allowed:   current <= int64(fw.limit),
		Limit:     fw.limit,
		Remaining: max(0, remaining),
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Reset clears the counter for the key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, key)
}

var _ Limiter = (*FixedWindow)(nil)
