package filecache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// Source loads a fresh dataset from disk.
type Source interface {
	Load(ctx context.Context) (*domain.Dataset, error)
}

// Listener is called after every invalidation with the new cache version.
type Listener func(version uint64)

// Cache holds the current dataset for the whole process. The dataset is
// read-only once published; Invalidate drops it so the next Snapshot reloads.
type Cache struct {
	source  Source
	logger  *slog.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	current   *domain.Dataset
	version   uint64
	inflight  *load
	listeners []Listener
}

// load is a reload shared by every caller that arrives while it runs.
type load struct {
	done    chan struct{}
	version uint64
	ds      *domain.Dataset
	err     error
}

// New creates a cache decorator around a dataset source.
func New(source Source, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		source:  source,
		logger:  logger,
		metrics: metrics,
		version: 1,
	}
}

// Snapshot returns the cached dataset, loading it on first use or after an
// invalidation. Concurrent callers during a load share its result. Failed
// loads are not cached.
func (c *Cache) Snapshot(ctx context.Context) (*domain.Dataset, error) {
	c.mu.Lock()
	if c.current != nil {
		ds := c.current
		c.mu.Unlock()
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return ds, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	l := c.inflight
	if l == nil || l.version != c.version {
		l = &load{done: make(chan struct{}), version: c.version}
		c.inflight = l
		go c.run(l)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return l.ds, l.err
	}
}

// run performs a load detached from any single caller's context so that an
// abandoned request does not fail the others waiting on it.
func (c *Cache) run(l *load) {
	ds, err := c.source.Load(context.Background())
	if err == nil {
		ds.Version = l.version
	}

	c.mu.Lock()
	l.ds, l.err = ds, err
	if c.inflight == l {
		c.inflight = nil
	}
	// Publish only if nothing invalidated the cache while loading.
	if err == nil && l.version == c.version {
		c.current = ds
	}
	c.mu.Unlock()
	close(l.done)

	if err != nil {
		c.logger.Error("snapshot load failed", "version", l.version, "error", err)
	}
}

// Invalidate drops the cached dataset and notifies listeners.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.version++
	version := c.version
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	c.metrics.CacheInvalidations.Inc()
	c.logger.Info("snapshot invalidated", "version", version)
	for _, fn := range listeners {
		fn(version)
	}
}

// Subscribe registers fn to be called after each invalidation.
func (c *Cache) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Version returns the current cache generation. It starts at 1 and increases
// with every invalidation.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}
