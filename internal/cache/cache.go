// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package cache

import (
	"sync"
	"time"

	"github.com/lucyn-dev/lucyn/internal/metrics"
)

// entry is a cached value with its expiry time.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int
	LastCleanup time.Time
}

// HitRate returns hits as a fraction of all lookups, or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a TTL cache keyed by string.
type Cache[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
	stats   Stats

	// versions counts invalidations per key and epoch counts Clear calls.
	// Both only grow, so their sum changes whenever a key is invalidated.
	versions map[string]uint64
	epoch    uint64

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a cache whose entries live for ttl. name labels the cache's
// metrics. A background sweep removes expired entries every ttl (at least
// once a second) until Stop is called.
func New[V any](name string, ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		name:    name,
		ttl:     ttl,
		now:     time.Now,
		entries:  make(map[string]entry[V]),
		versions: make(map[string]uint64),
		done:     make(chan struct{}),
	}
	c.stats.LastCleanup = c.now()

	interval := ttl
	if interval < time.Second {
		interval = time.Second
	}
	go c.cleanupLoop(interval)
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
			c.stats.Evictions++
			metrics.RecordCacheEvictions(c.name, 1)
		}
		c.mu.Unlock()
		ok = false
	}

	c.mu.Lock()
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()
	metrics.RecordCacheLookup(c.name, ok)

	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Version returns a token for key that changes whenever key is deleted or
// the cache is cleared. Read-through callers take it before loading a value
// and hand it to SetIfUnchanged.
func (c *Cache[V]) Version(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch + c.versions[key]
}

// SetIfUnchanged stores value under key only if key was not invalidated
// since Version returned version. It reports whether the value was stored.
//
// Example usage:
//
//	v := c.Version(orgID)
//	overview, err := store.GetOverview(ctx, orgID)
//	if err == nil {
//	    c.SetIfUnchanged(orgID, overview, v)
//	}
func (c *Cache[V]) SetIfUnchanged(key string, value V, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.versions[key] != version {
		return false
	}
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	return true
}

// Delete removes key and invalidates its version. Deleting a missing key
// still bumps the version so in-flight loads are not stored.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	c.versions[key]++
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.stats.Evictions++
	}
	c.mu.Unlock()
	if ok {
		metrics.RecordCacheEvictions(c.name, 1)
	}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry[V])
	c.epoch++
	c.stats.Evictions += int64(n)
	c.mu.Unlock()
	metrics.RecordCacheEvictions(c.name, n)
}

// Len returns the number of stored entries, expired ones included until
// they are swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.TotalKeys = len(c.entries)
	return s
}

// Stop ends the background sweep. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

// cleanup removes every expired entry.
func (c *Cache[V]) cleanup() {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	c.stats.LastCleanup = now
	c.mu.Unlock()
	metrics.RecordCacheEvictions(c.name, removed)
}
