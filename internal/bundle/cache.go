package bundle

import (
	"errors"
	"sync"

	"github.com/psantana5/toolshim/internal/report"
)

// Cache memoizes resolved entry points. Each bundle location is opened at
// most once; a failed open is not remembered and is retried next time.
//
// Nothing is ever evicted: hosts use a small fixed set of bundles.
type Cache struct {
	open    Opener
	metrics *report.Metrics

	mu      sync.Mutex
	bundles map[string]Bundle
	entries map[cacheKey]Main
	stats   CacheStats
}

type cacheKey struct {
	location string
	entry    string
}

// CacheStats counts cache activity.
type CacheStats struct {
	Loads  int64 `json:"loads"`  // bundles opened
	Hits   int64 `json:"hits"`   // entry points served from the cache
	Misses int64 `json:"misses"` // entry points looked up in a bundle
}

// NewCache creates a cache that opens bundles with open
func NewCache(open Opener) *Cache {
	return &Cache{
		open:    open,
		metrics: report.Global(),
		bundles: make(map[string]Bundle),
		entries: make(map[cacheKey]Main),
	}
}

// Resolve returns the entry point named entry in the bundle at location.
// Every failure is a *ResolveError.
func (c *Cache) Resolve(location, entry string) (Main, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{location: location, entry: entry}
	if m, ok := c.entries[key]; ok {
		c.stats.Hits++
		c.metrics.ObserveCache("hit")
		return m, nil
	}
	c.stats.Misses++
	c.metrics.ObserveCache("miss")

	b, ok := c.bundles[location]
	if !ok {
		var err error
		b, err = c.open(location)
		if err != nil {
			return nil, resolveError(location, "", err)
		}
		c.bundles[location] = b
		c.stats.Loads++
		c.metrics.ObserveCache("load")
	}

	m, err := b.Lookup(entry)
	if err != nil {
		return nil, resolveError(location, entry, err)
	}
	c.entries[key] = m
	return m, nil
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of cached entry points
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func resolveError(location, entry string, err error) error {
	var re *ResolveError
	if errors.As(err, &re) {
		return err
	}
	return &ResolveError{Location: location, Entry: entry, Err: err}
}
