package themes

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// ClusterFunc computes clusters for a set of items.
type ClusterFunc func(ctx context.Context, items []domain.Item) (map[string][]domain.Item, error)

// Cache keeps the last clustering and recomputes it once interval has
// elapsed. Readers between refreshes get the stale result.
type Cache struct {
	mu       sync.Mutex
	compute  ClusterFunc
	now      func() time.Time
	last     time.Time
	clusters map[string][]domain.Item
}

// NewCache wraps compute. A nil clock uses time.Now.
func NewCache(compute ClusterFunc, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}

	return &Cache{compute: compute, now: now}
}

// NewClusterCache caches c.Cluster with a fixed k range.
func NewClusterCache(c *Clusterer, kMin, kMax int, now func() time.Time) *Cache {
	return NewCache(func(ctx context.Context, items []domain.Item) (map[string][]domain.Item, error) {
		return c.Cluster(ctx, items, kMin, kMax)
	}, now)
}

// Refresh returns cached clusters unless interval has elapsed since the last
// computation. An interval <= 0 always recomputes. A failed computation
// leaves the previous result in place. The returned map is a copy; the item
// slices are shared and must not be modified.
func (c *Cache) Refresh(ctx context.Context, items []domain.Item, interval time.Duration) (map[string][]domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if !c.last.IsZero() && interval > 0 && now.Sub(c.last) < interval {
		observability.ThemeCacheHits.Inc()
		return maps.Clone(c.clusters), nil
	}

	clusters, err := c.compute(ctx, items)
	if err != nil {
		return nil, err
	}

	c.clusters = clusters
	c.last = now

	return maps.Clone(clusters), nil
}

// Clusters returns a copy of the last computed result without refreshing.
func (c *Cache) Clusters() map[string][]domain.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.clusters)
}
