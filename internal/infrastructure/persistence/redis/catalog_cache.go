package redis

import (
	"context"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// CatalogCache implements query.CatalogCache on top of the generic Cache.
// Catalog pages are short-lived; lifecycle events additionally invalidate the
// whole namespace so status changes show up before the TTL runs out.
type CatalogCache struct {
	cache *Cache
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(cache *Cache) *CatalogCache {
	return &CatalogCache{cache: cache}
}

// GetCatalog returns the cached catalog page for the key, or false on miss.
func (c *CatalogCache) GetCatalog(ctx context.Context, key string) ([]*challenge.Challenge, bool) {
	var catalog []*challenge.Challenge
	err := c.cache.Get(ctx, CatalogKey(key), &catalog)
	if err != nil {
		return nil, false
	}
	return catalog, true
}

// SetCatalog stores a catalog page under the key with a TTL.
func (c *CatalogCache) SetCatalog(ctx context.Context, key string, catalog []*challenge.Challenge, ttl time.Duration) {
	_ = c.cache.Set(ctx, CatalogKey(key), catalog, ttl)
}

// InvalidateCatalog drops all cached catalog pages.
func (c *CatalogCache) InvalidateCatalog(ctx context.Context) {
	_ = c.cache.DeleteByPattern(ctx, PrefixCatalog+"*")
}
