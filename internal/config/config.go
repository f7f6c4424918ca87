// Package config defines service configuration structures and loading hooks.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"omitempty,oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpstreamBaseURL is the Codeforces API root.
	UpstreamBaseURL string `koanf:"upstream_base_url" validate:"required,url"`

	// UpstreamTimeoutMS bounds every upstream call.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms" validate:"gt=0"`

	// UpstreamRPS and UpstreamBurst pace outbound calls. RPS <= 0 disables pacing.
	UpstreamRPS   float64 `koanf:"upstream_rps" validate:"gte=0"`
	UpstreamBurst int     `koanf:"upstream_burst" validate:"gte=1"`

	// BatchSize is the number of handles per user.info request on fallback.
	BatchSize int `koanf:"batch_size" validate:"gt=0,lte=10000"`

	// BatchDelayMS is the pause after every fallback batch.
	BatchDelayMS int `koanf:"batch_delay_ms" validate:"gte=0"`

	// DefaultRating is assumed for contestants with no rating data.
	DefaultRating float64 `koanf:"default_rating" validate:"gt=0"`

	// CacheTTLSeconds and CacheSweepSeconds configure the result cache.
	CacheTTLSeconds   int `koanf:"cache_ttl_seconds" validate:"gt=0"`
	CacheSweepSeconds int `koanf:"cache_sweep_seconds" validate:"gt=0"`

	// MaxHandles caps POST .../performances.
	MaxHandles int `koanf:"max_handles" validate:"gt=0"`

	// DedupeInflight makes concurrent identical uncached loads share one upstream call.
	DedupeInflight bool `koanf:"dedupe_inflight"`

	// Workers bounds concurrent rank calculations per batch request. 0 means one per CPU.
	Workers int `koanf:"workers" validate:"gte=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		UpstreamBaseURL:   "https://codeforces.com/api",
		UpstreamTimeoutMS: 10_000,
		UpstreamRPS:       5,
		UpstreamBurst:     1,
		BatchSize:         5000,
		BatchDelayMS:      500,
		DefaultRating:     1500,
		CacheTTLSeconds:   300,
		CacheSweepSeconds: 120,
		MaxHandles:        10_000,
		DedupeInflight:    false,
	}
}

// UpstreamTimeout returns UpstreamTimeoutMS as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// BatchDelay returns BatchDelayMS as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CacheSweep returns CacheSweepSeconds as a duration.
func (c *Config) CacheSweep() time.Duration {
	return time.Duration(c.CacheSweepSeconds) * time.Second
}
