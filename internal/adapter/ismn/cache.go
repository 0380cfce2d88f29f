package ismn

import (
	"container/list"
	"context"
	"sync"

	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
)

// CachedSeriesLoader wraps a SeriesLoader with an in-memory LRU keyed by
// the station's file path. Stations near busy ground tracks are hit on
// most days, and their files are tens of megabytes of text.
type CachedSeriesLoader struct {
	inner   domain.SeriesLoader
	cache   *seriesCache
	metrics *observability.Metrics
}

// NewCachedSeriesLoader creates a cache decorator holding up to maxEntries series.
func NewCachedSeriesLoader(inner domain.SeriesLoader, maxEntries int, metrics *observability.Metrics) *CachedSeriesLoader {
	return &CachedSeriesLoader{
		inner:   inner,
		cache:   newSeriesCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSeriesLoader) LoadSeries(ctx context.Context, st domain.Station) (domain.Series, error) {
	if s, ok := c.cache.get(st.FilePath); ok {
		c.metrics.SeriesCache.WithLabelValues("hit").Inc()
		return s, nil
	}
	c.metrics.SeriesCache.WithLabelValues("miss").Inc()

	s, err := c.inner.LoadSeries(ctx, st)
	if err != nil {
		return nil, err
	}
	c.cache.put(st.FilePath, s)
	return s, nil
}

// seriesCache is a thread-safe LRU of station series.
type seriesCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type cacheItem struct {
	key    string
	series domain.Series
}

func newSeriesCache(maxEntries int) *seriesCache {
	return &seriesCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *seriesCache) get(key string) (domain.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).series, true
}

func (c *seriesCache) put(key string, s domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).series = s
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheItem{key: key, series: s})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).key)
	}
}

func (c *seriesCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
