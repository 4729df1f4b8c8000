package dataset

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/zipcode-cli/internal/model"
)

const defaultCacheSize = 8

// Cache keeps loaded record sets in memory, keyed by source name, and collapses
// concurrent loads of the same source into one. Failed loads are not cached.
type Cache struct {
	lru   *expirable.LRU[string, []model.Record]
	group singleflight.Group
}

// NewCache creates a cache holding up to size record sets. A ttl of zero keeps
// entries until evicted.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cache{lru: expirable.NewLRU[string, []model.Record](size, nil, ttl)}
}

// Wrap returns an accessor that serves a through the cache.
func (c *Cache) Wrap(a Accessor) Accessor {
	return &cachedAccessor{cache: c, inner: a}
}

// Invalidate drops the cached records of a source.
func (c *Cache) Invalidate(name string) {
	c.lru.Remove(name)
}

// Len reports the number of cached record sets.
func (c *Cache) Len() int {
	return c.lru.Len()
}

type cachedAccessor struct {
	cache *Cache
	inner Accessor
}

func (a *cachedAccessor) Name() string { return a.inner.Name() }

func (a *cachedAccessor) Fetch(ctx context.Context) ([]model.Record, error) {
	name := a.inner.Name()
	if records, ok := a.cache.lru.Get(name); ok {
		return records, nil
	}

	// The shared load outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := a.cache.group.DoChan(name, func() (any, error) {
		records, err := a.inner.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		a.cache.lru.Add(name, records)
		zap.L().Info("dataset loaded",
			zap.String("source", name),
			zap.Int("records", len(records)),
		)
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			zap.L().Debug("dataset load shared", zap.String("source", name))
		}
		return res.Val.([]model.Record), nil
	}
}
