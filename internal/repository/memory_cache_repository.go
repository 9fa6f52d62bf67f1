package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCacheRepository is an in-process cache with the same contract as the
// Redis repository. Entries are evicted by LRU order, by the cache wide maxTTL,
// and by their own per-entry deadline.
type MemoryCacheRepository struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCacheRepository builds a cache holding at most size entries for at most maxTTL.
func NewMemoryCacheRepository(size int, maxTTL time.Duration) *MemoryCacheRepository {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCacheRepository{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get decodes a live entry into dest.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	entry, ok := r.lru.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		r.lru.Remove(key)
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores a JSON snapshot of value. Later mutation of value does not leak into the cache.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.lru.Add(key, entry)
	return nil
}

// DeleteByPattern removes keys matching a Redis style glob.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	removed := 0
	for _, key := range r.lru.Keys() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return removed, fmt.Errorf("match cache pattern %s: %w", pattern, err)
		}
		if matched && r.lru.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (r *MemoryCacheRepository) Ping(context.Context) error { return nil }

// Close purges all entries.
func (r *MemoryCacheRepository) Close() error {
	r.lru.Purge()
	return nil
}
