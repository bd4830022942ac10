package products

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	cacheTTL             = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute

	facetsCacheKey       = "facets"
	treeCacheKey         = "tree"
	inactiveTreeCacheKey = "tree:all"
)

// catalogCache holds derived read models (facets, category trees). Any write
// to products or categories flushes it. A result computed from reads that
// started before a flush is not stored.
type catalogCache struct {
	items *cache.Cache

	mu  sync.Mutex
	gen uint64
}

func newCatalogCache() *catalogCache {
	return &catalogCache{items: cache.New(cacheTTL, cacheCleanupInterval)}
}

func (c *catalogCache) facets() (*Facets, bool) {
	v, ok := c.items.Get(facetsCacheKey)
	if !ok {
		return nil, false
	}
	return v.(*Facets), true
}

func (c *catalogCache) setFacets(gen uint64, f *Facets) {
	c.set(gen, facetsCacheKey, f)
}

func treeKey(includeInactive bool) string {
	if includeInactive {
		return inactiveTreeCacheKey
	}
	return treeCacheKey
}

func (c *catalogCache) tree(includeInactive bool) ([]*CategoryNode, bool) {
	v, ok := c.items.Get(treeKey(includeInactive))
	if !ok {
		return nil, false
	}
	return v.([]*CategoryNode), true
}

func (c *catalogCache) setTree(gen uint64, includeInactive bool, nodes []*CategoryNode) {
	c.set(gen, treeKey(includeInactive), nodes)
}

// generation is taken before reading the collections a result is built from.
func (c *catalogCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *catalogCache) set(gen uint64, key string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.items.Set(key, v, cache.DefaultExpiration)
	return true
}

func (c *catalogCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items.Flush()
}

func (c *catalogCache) size() int { return c.items.ItemCount() }
