package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a single-process counter store. Limits are per instance, so
// it is only used when explicitly configured.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, int64]
}

func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, int64](time.Minute),
		ttlcache.WithDisableTouchOnHit[string, int64](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache}
}

// Increment refreshes the TTL on every call, matching INCR+PEXPIRE.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int64 = 1
	if item := s.cache.Get(key); item != nil {
		next = item.Value() + 1
	}
	s.cache.Set(key, next, ttl)

	return next, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	return 0, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
