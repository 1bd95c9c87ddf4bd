package cache

import (
	"context"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

// MemoryCache is the in-process fallback used when Redis is absent or down.
type MemoryCache struct {
	items      *ccache.Cache[[]byte]
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryCache(maxSize int64) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		items:      ccache.New(ccache.Configure[[]byte]().MaxSize(maxSize)),
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.items.Get(key)
	if item == nil || item.Expired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	m.items.DeletePrefix(prefix)
	return nil
}

func (m *MemoryCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		m.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

func (m *MemoryCache) Stop() {
	m.items.Stop()
}
