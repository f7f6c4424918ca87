package service

import (
	"time"

	"github.com/okian/ratingforces/internal/adapters/cache"
	"github.com/okian/ratingforces/internal/domain/ratings"
	"github.com/okian/ratingforces/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache shares an existing cache. The service does not close it on Stop.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithResolver replaces the rating resolver built on Start.
func WithResolver(r *ratings.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithCacheTTL sets how long fetched and computed results are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithInflightDedupe makes concurrent identical uncached loads share one
// upstream call.
func WithInflightDedupe(enabled bool) Option {
	return func(s *Service) {
		s.dedupe = enabled
	}
}

// WithWorkers bounds how many ranks a batch request computes concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}
