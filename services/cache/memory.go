package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
)

type memoryEntry struct {
	data    []byte
	expires time.Time // zero never expires
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// memoryCache is used when no redis server is configured.
type memoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

var _ core.Cache = (*memoryCache)(nil)

func NewMemoryCache() core.Cache {
	return &memoryCache{items: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return core.ErrCacheMiss
	}
	if now := time.Now(); entry.expired(now) {
		c.mu.Lock()
		if e, ok := c.items[key]; ok && e.expired(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return core.ErrCacheMiss
	}
	return errors.Wrap(json.Unmarshal(entry.data, dest), "decoding cached value")
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cached value")
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.evictExpired()
	c.items[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

// evictExpired drops the expired entries that were never read again; c.mu must be held.
func (c *memoryCache) evictExpired() {
	now := time.Now()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}
