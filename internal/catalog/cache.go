package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Lister is anything that can fetch a whole collection.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// ListCache holds recently fetched collections keyed by entity.
// A zero TTL disables caching.
type ListCache struct {
	store    *cache.Cache
	ttl      time.Duration
	observer func(entity string, hit bool)

	// generations change on every invalidation. A fetch that started
	// under an older generation must not store its result.
	mu          sync.Mutex
	generations map[string]uint64
	epoch       uint64
}

// generation identifies the cache state of one entity.
type generation struct {
	epoch, entity uint64
}

// NewListCache creates a cache whose entries expire after ttl. Expired
// entries are dropped on access, so no janitor goroutine is started.
func NewListCache(ttl time.Duration) *ListCache {
	return &ListCache{store: cache.New(ttl, 0), ttl: ttl, generations: make(map[string]uint64)}
}

func (c *ListCache) generation(entity string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{epoch: c.epoch, entity: c.generations[entity]}
}

// storeIfCurrent caches items unless entity was invalidated after gen
// was taken.
func (c *ListCache) storeIfCurrent(entity string, gen generation, items any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != (generation{epoch: c.epoch, entity: c.generations[entity]}) {
		return false
	}
	c.store.Set(entity, items, cache.DefaultExpiration)
	return true
}

// OnLookup registers fn to be told about every cache hit or miss.
// It must be called before the cache is shared.
func (c *ListCache) OnLookup(fn func(entity string, hit bool)) {
	if c == nil {
		return
	}
	c.observer = fn
}

func (c *ListCache) observe(entity string, hit bool) {
	if c.observer != nil {
		c.observer(entity, hit)
	}
}

// Invalidate drops the cached collection of entity.
func (c *ListCache) Invalidate(entity string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[entity]++
	c.store.Delete(entity)
}

// Flush drops every cached collection.
func (c *ListCache) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.store.Flush()
}

// Cached serves List from a ListCache before falling back to the backend.
type Cached[T any] struct {
	inner  Lister[T]
	entity string
	cache  *ListCache
}

// NewCached wraps inner. A nil cache passes every call through.
func NewCached[T any](inner Lister[T], entity string, c *ListCache) *Cached[T] {
	return &Cached[T]{inner: inner, entity: entity, cache: c}
}

// List returns a cached copy when fresh, otherwise fetches and stores it.
// Failures are never cached, and neither is a list fetched across an
// invalidation of the entity.
func (c *Cached[T]) List(ctx context.Context) ([]T, error) {
	if c.cache == nil || c.cache.ttl <= 0 {
		return c.inner.List(ctx)
	}
	if v, found := c.cache.store.Get(c.entity); found {
		if items, ok := v.([]T); ok {
			c.cache.observe(c.entity, true)
			return append([]T(nil), items...), nil
		}
	}
	c.cache.observe(c.entity, false)

	gen := c.cache.generation(c.entity)
	items, err := c.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.storeIfCurrent(c.entity, gen, append([]T(nil), items...))
	return items, nil
}

// Invalidate drops the cached collection.
func (c *Cached[T]) Invalidate() {
	c.cache.Invalidate(c.entity)
}
