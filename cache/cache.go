// Package cache implements the gateway's generic keyed store (C4): TTL
// expiry, bounded size/bytes, access-count eviction, and hit/miss stats.
//
// Grounded on routing.SimpleCache / routing.LRUCache and core.MemoryStore
// from the teacher repo, generalized from "cache of *RoutingPlan" to a
// generic any-valued store and from pure-LRU to the spec's access-count
// scoring (§4.1).
package cache

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxEntries = 1000
	defaultMaxBytes   = 100 * 1024 * 1024
)

type entry struct {
	value       any
	cachedAt    time.Time
	expiresAt   time.Time // zero means no TTL
	accessCount int64
	size        int
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Stats reports cache counters. Hit/miss counters are monotonic across the
// process lifetime and reset only by Clear (§4.1).
type Stats struct {
	Entries int
	Bytes   int64
	Hits    int64
	Misses  int64
}

// Cache is a concurrency-safe, TTL-aware, bounded keyed store.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	maxBytes   int64
	bytes      int64
	hits       int64
	misses     int64

	stopSweep chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides the default entry-count bound.
func WithMaxEntries(n int) Option { return func(c *Cache) { c.maxEntries = n } }

// WithMaxBytes overrides the default serialized-byte-size bound.
func WithMaxBytes(n int64) Option { return func(c *Cache) { c.maxBytes = n } }

// New creates a Cache and starts its background expiry sweep.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		maxEntries: defaultMaxEntries,
		maxBytes:   defaultMaxBytes,
		stopSweep:  make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.sweepLoop()
	return c
}

// Close stops the background sweep goroutine. Safe to call once.
func (c *Cache) Close() { close(c.stopSweep) }

// Get returns the value for key, or (nil, false) if missing or expired.
// Expired entries are removed on access (lazy expiry, I7).
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		c.mu.Lock()
		delete(c.entries, key)
		c.bytes -= int64(e.size)
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	e.accessCount++
	c.mu.Unlock()
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set stores value under key with an optional TTL (0 means no expiry),
// evicting lower-scored entries if the store would exceed its bounds.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	size := estimateSize(value)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.bytes -= int64(old.size)
	}

	e := &entry{
		value:    value,
		cachedAt: now,
		size:     size,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	c.bytes += int64(size)

	c.evictLocked()
}

// Remove deletes key if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.bytes -= int64(e.size)
		delete(c.entries, key)
	}
}

// Clear empties the cache and resets stats counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.bytes = 0
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns a snapshot of current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Bytes:   c.bytes,
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
	}
}

// evictLocked applies the entry-count and byte-size bounds. Must be called
// with c.mu held. Lowest access count evicted first, ties broken by oldest
// cachedAt (§4.1).
func (c *Cache) evictLocked() {
	if len(c.entries) > c.maxEntries {
		c.evictNLocked(len(c.entries) - c.maxEntries)
	}
	if c.bytes > c.maxBytes {
		// Evict ~10% of the lowest-scored entries in one pass.
		n := len(c.entries) / 10
		if n < 1 {
			n = 1
		}
		c.evictNLocked(n)
	}
}

func (c *Cache) evictNLocked(n int) {
	if n <= 0 || len(c.entries) == 0 {
		return
	}
	type scored = struct {
		key string
		e   *entry
	}
	candidates := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		candidates = append(candidates, scored{k, e})
	}
	sortByScore(candidates)
	for i := 0; i < n && i < len(candidates); i++ {
		c.bytes -= int64(candidates[i].e.size)
		delete(c.entries, candidates[i].key)
	}
}

func sortByScore(s []struct {
	key string
	e   *entry
}) {
	// insertion sort: candidate pools are small relative to cache size
	// (at most maxEntries, and the byte-pressure path only needs the
	// lowest ~10%), so O(n^2) here is not worth a heap for this scale.
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && less(s[j], s[j-1]) {
			s[j], s[j-1] = s[j-1], s[j]
			j--
		}
	}
}

func less(a, b struct {
	key string
	e   *entry
}) bool {
	if a.e.accessCount != b.e.accessCount {
		return a.e.accessCount < b.e.accessCount
	}
	return a.e.cachedAt.Before(b.e.cachedAt)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if e.expired(now) {
					c.bytes -= int64(e.size)
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopSweep:
			return
		}
	}
}

func estimateSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 64
	}
	return len(b)
}
