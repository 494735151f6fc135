package ratelimit

import (
	"context"
	"time"
)

// Store holds rate limit counters. Increment must be atomic: the counter is
// incremented and its expiry set as one operation.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}
