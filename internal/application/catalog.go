package application

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCatalogTTL  = 5 * time.Minute
	catalogListKey     = "grounds:all"
	catalogItemPrefix  = "ground:"
	catalogLoadTimeout = 10 * time.Second
)

// CachedCatalog fronts a ResourceCatalog with a TTL cache. Concurrent misses
// for the same key share a single load.
type CachedCatalog struct {
	source ResourceCatalog
	store  *cache.Cache
	group  singleflight.Group
}

// NewCachedCatalog wraps source. A non-positive ttl uses five minutes.
func NewCachedCatalog(source ResourceCatalog, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CachedCatalog{
		source: source,
		store:  cache.New(ttl, 2*ttl),
	}
}

// GetResource returns the cached ground or loads it from the source. Misses
// that end in an error are not cached.
func (c *CachedCatalog) GetResource(ctx context.Context, id string) (Resource, error) {
	key := catalogItemPrefix + id
	if cached, found := c.store.Get(key); found {
		return cached.(Resource), nil
	}

	value, err := c.load(ctx, key, func(loadCtx context.Context) (any, error) {
		resource, err := c.source.GetResource(loadCtx, id)
		if err != nil {
			return nil, err
		}
		c.store.SetDefault(key, resource)
		return resource, nil
	})
	if err != nil {
		return Resource{}, err
	}
	return value.(Resource), nil
}

// ListResources returns every ground, cached as one entry.
func (c *CachedCatalog) ListResources(ctx context.Context) ([]Resource, error) {
	if cached, found := c.store.Get(catalogListKey); found {
		return cloneResources(cached.([]Resource)), nil
	}

	value, err := c.load(ctx, catalogListKey, func(loadCtx context.Context) (any, error) {
		resources, err := c.source.ListResources(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store.SetDefault(catalogListKey, cloneResources(resources))
		return resources, nil
	})
	if err != nil {
		return nil, err
	}
	resources, ok := value.([]Resource)
	if !ok {
		return nil, fmt.Errorf("catalog: unexpected cached value %T", value)
	}
	return cloneResources(resources), nil
}

// load runs fn once per key for all concurrent callers. The shared load is
// detached from any single caller's cancellation; each caller only stops
// waiting when its own ctx ends.
func (c *CachedCatalog) load(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	results := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogLoadTimeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		return result.Val, result.Err
	}
}

// Invalidate drops every cached entry, forcing the next read to hit the source.
func (c *CachedCatalog) Invalidate() {
	c.store.Flush()
}

func cloneResources(resources []Resource) []Resource {
	if len(resources) == 0 {
		return nil
	}
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}
