// Package cache provides an in-memory result cache with per-entry expiry.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/ratingforces/pkg/metrics"
)

// Default cache configuration.
const (
	DefaultTTL           = 300 * time.Second
	DefaultSweepInterval = 120 * time.Second
)

// entry is a cached value and the instant it stops being served.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Keys      int   `json:"keys"`
}

// Cache is a concurrency-safe key/value store whose entries expire after a TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its background sweep.
// Close must be called to stop the sweep goroutine.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]entry),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.sweepLoop()

	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return nil, false
	}

	now := c.now()
	if e.expired(now) {
		c.mu.Lock()
		// The key may have been rewritten since the read lock was released.
		if cur, ok := c.entries[key]; ok && cur.expired(now) {
			delete(c.entries, key)
			c.recordEvictions(1)
		}
		c.updateEntries()
		c.mu.Unlock()
		c.recordMiss()
		return nil, false
	}

	c.hits.Add(1)
	metrics.RecordCacheHit()
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key for ttl. A non-positive ttl stores an
// entry that is already expired.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.updateEntries()
	c.mu.Unlock()
}

// Delete removes key and reports how many entries were removed.
func (c *Cache) Delete(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return 0
	}
	delete(c.entries, key)
	c.updateEntries()
	return 1
}

// Flush removes every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.updateEntries()
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of hit, miss and eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Keys:      c.Len(),
	}
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (c *Cache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.recordEvictions(removed)
		c.updateEntries()
	}
	return removed
}

// Close stops the background sweep. It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
	})
}

func (c *Cache) sweepLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	metrics.RecordCacheMiss()
}

func (c *Cache) recordEvictions(n int) {
	c.evictions.Add(int64(n))
	metrics.RecordCacheEvictions(n)
}

// updateEntries must be called with mu held.
func (c *Cache) updateEntries() {
	metrics.UpdateCacheEntries(len(c.entries))
}

// Key builds a cache key from parts. Each part is JSON encoded and the
// encodings are joined with ":", so equal part sequences give equal keys.
func Key(parts ...any) string {
	encoded := make([]string, len(parts))
	for i, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			encoded[i] = fmt.Sprintf("%q", fmt.Sprint(p))
			continue
		}
		encoded[i] = string(b)
	}
	return strings.Join(encoded, ":")
}
