package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/analyticshq/metastore"
)

// SchemaCache is a process-local read-through cache of collection schemas.
// It is purely an optimization: correctness of stored data is the Service's
// job and the cache is never consulted to arbitrate conflicts. Entries are
// written only after a store transaction has committed.
type SchemaCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	gen     uint64

	ttl   time.Duration
	clock clock.Clock
}

type cacheEntry struct {
	fields   []metastore.SchemaField
	gen      uint64
	cachedAt time.Time
}

// CacheOption is a functional option for SchemaCache.
type CacheOption func(*SchemaCache)

// WithCacheTTL expires entries d after they were put. Zero means entries
// never expire and only explicit invalidation evicts them.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(c *SchemaCache) {
		c.ttl = d
	}
}

// WithCacheClock sets the clock used for TTL expiry, so tests can drive a
// mock clock.
func WithCacheClock(cl clock.Clock) CacheOption {
	return func(c *SchemaCache) {
		c.clock = cl
	}
}

// NewSchemaCache returns an empty cache.
func NewSchemaCache(opts ...CacheOption) *SchemaCache {
	c := &SchemaCache{
		entries: map[string]*cacheEntry{},
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cacheKey joins project and collection with nameSeparator. Validated names
// cannot contain it, so distinct pairs never share a cache key.
func cacheKey(project, collection string) string {
	return project + nameSeparator + collection
}

// Get returns a copy of the cached snapshot for the collection.
func (c *SchemaCache) Get(project, collection string) ([]metastore.SchemaField, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(project, collection)]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.clock.Now().Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}

	fields := make([]metastore.SchemaField, len(entry.fields))
	copy(fields, entry.fields)
	return fields, true
}

// Put replaces the cached snapshot unconditionally and returns the new
// generation. Locally the last committer wins; the store remains the source
// of truth.
func (c *SchemaCache) Put(project, collection string, fields []metastore.SchemaField) uint64 {
	snapshot := make([]metastore.SchemaField, len(fields))
	copy(snapshot, fields)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.entries[cacheKey(project, collection)] = &cacheEntry{
		fields:   snapshot,
		gen:      c.gen,
		cachedAt: c.clock.Now(),
	}
	return c.gen
}

// Generation returns the generation marker of the cached entry, used to
// detect staleness across a store write.
func (c *SchemaCache) Generation(project, collection string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(project, collection)]
	if !ok {
		return 0, false
	}
	return entry.gen, true
}

// Invalidate evicts one collection's entry.
func (c *SchemaCache) Invalidate(project, collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(project, collection))
}

// InvalidateProject evicts every entry of the project.
func (c *SchemaCache) InvalidateProject(project string) {
	prefix := project + nameSeparator

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll evicts every entry.
func (c *SchemaCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*cacheEntry{}
}

// Len returns the number of live entries.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
