package pagecache

import (
	"github.com/VictoriaMetrics/fastcache"
)

const defaultMaxBytes = 32 * 1024 * 1024

// Config configures the rendered page cache.
type Config struct {
	MaxBytes int
}

// Cache keeps rendered public pages in memory until the next save.
type Cache struct {
	store *fastcache.Cache
}

// New constructs a Cache. Non-positive sizes fall back to 32 MiB.
func New(cfg Config) *Cache {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Cache{store: fastcache.New(maxBytes)}
}

// Get returns the cached page for key. Empty entries count as misses.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value := c.store.GetBig(nil, []byte(key))
	if len(value) == 0 {
		return nil, false
	}
	return value, true
}

// Set stores a rendered page. Pages larger than 64 KiB are split by fastcache.
func (c *Cache) Set(key string, page []byte) {
	if c == nil || len(page) == 0 {
		return
	}
	c.store.SetBig([]byte(key), page)
}

// Invalidate drops every cached page.
func (c *Cache) Invalidate() {
	if c == nil {
		return
	}
	c.store.Reset()
}

// Stats returns fastcache counters.
func (c *Cache) Stats() fastcache.Stats {
	var stats fastcache.Stats
	if c != nil {
		c.store.UpdateStats(&stats)
	}
	return stats
}
