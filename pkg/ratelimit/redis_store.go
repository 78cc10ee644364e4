package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over Redis so every service replica shares the
// same counters. Keys self-expire with the window; nothing is persisted
// beyond it.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed counter store. prefix namespaces the
// keys, e.g. "ratelimit".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// IncrementAndGet bumps the counter and attaches the window TTL on first
// increment. INCR and EXPIRE NX run in one pipeline, so a fresh key never
// lingers without an expiry.
func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := s.prefix + ":" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("ratelimit: redis pipeline failed: %w", err)
	}

	return incr.Val(), ttl.Val(), nil
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis delete failed: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
