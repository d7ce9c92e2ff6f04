package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

// Cache is the local persistent tier. Values are read and written whole.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl <= 0 keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process Cache used for tests and single-node development.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]memoryEntry), now: time.Now}
}

// WithClock overrides the clock used for TTL checks.
func (m *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	m.now = now
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.store, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.store[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.store, key)
	m.mu.Unlock()
	return nil
}
