package cache

import "time"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithDefaultTTL sets the lifetime used by Set.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are removed in the background.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Cache) {
		if interval > 0 {
			c.sweepInterval = interval
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}
