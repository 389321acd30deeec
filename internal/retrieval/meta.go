package retrieval

import (
	"maps"
	"sync"
	"time"
)

// MetaCache holds the metadata of the most recent successful retrieval.
// Concurrent writers are last-write-wins; no ordering is guaranteed.
type MetaCache struct {
	mu        sync.RWMutex
	meta      Meta
	updatedAt time.Time
}

// NewMetaCache returns an empty cache.
func NewMetaCache() *MetaCache {
	return &MetaCache{}
}

// Update stores meta. A nil meta leaves the previous value intact.
func (c *MetaCache) Update(meta Meta) {
	if meta == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta = maps.Clone(meta)
	c.updatedAt = time.Now()
}

// Load returns a copy of the cached meta, or nil when nothing was cached.
func (c *MetaCache) Load() Meta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.meta == nil {
		return nil
	}
	return maps.Clone(c.meta)
}

// UpdatedAt returns when the cache last changed. It is zero before the
// first Update.
func (c *MetaCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Get returns a single top-level field of the cached meta.
func (c *MetaCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.meta[key]
	return v, ok
}
