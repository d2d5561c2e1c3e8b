package catalog

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/mrlokans/libreria/internal/database"
)

// DefaultCategoryTTL is how long a category snapshot is served before the
// next Get refreshes it.
const DefaultCategoryTTL = 60 * time.Second

const categoriesQuery = `SELECT categoria FROM libros
UNION
SELECT categoria FROM libros1
ORDER BY categoria`

type categorySnapshot struct {
	labels  []string
	takenAt time.Time
}

// CategoryCache memoizes the distinct categories of both record sets.
// New uploads do not invalidate it, so a fresh category may take up to one
// TTL to appear. Concurrent misses may each query the store; the last
// snapshot stored wins.
type CategoryCache struct {
	store    RecordStore
	ttl      time.Duration
	now      func() time.Time
	observe  func(hit bool)
	snapshot atomic.Pointer[categorySnapshot]
}

type CacheOption func(*CategoryCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CategoryCache) {
		c.now = now
	}
}

// WithCacheObserver is called on every Get with whether it was served from
// the snapshot.
func WithCacheObserver(observe func(hit bool)) CacheOption {
	return func(c *CategoryCache) {
		c.observe = observe
	}
}

func NewCategoryCache(store RecordStore, ttl time.Duration, opts ...CacheOption) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultCategoryTTL
	}
	c := &CategoryCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the ordered category labels. The returned slice is the
// caller's to modify.
func (c *CategoryCache) Get(ctx context.Context) ([]string, error) {
	now := c.now()
	if snap := c.snapshot.Load(); snap != nil && now.Sub(snap.takenAt) < c.ttl {
		c.record(true)
		return slices.Clone(snap.labels), nil
	}
	c.record(false)

	rows, err := c.store.Query(ctx, categoriesQuery)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		if row["categoria"] == nil {
			continue
		}
		labels = append(labels, database.String(row, "categoria"))
	}

	c.snapshot.Store(&categorySnapshot{labels: labels, takenAt: now})
	return slices.Clone(labels), nil
}

// Invalidate drops the snapshot so the next Get queries the store.
func (c *CategoryCache) Invalidate() {
	c.snapshot.Store(nil)
}

func (c *CategoryCache) record(hit bool) {
	if c.observe != nil {
		c.observe(hit)
	}
}
