// Package ratings resolves the prior rating of every contestant in a contest.
package ratings

import (
	"context"
	"time"

	"github.com/okian/ratingforces/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithBatchSize sets how many handles go into one user profile request.
func WithBatchSize(size int) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithBatchDelay sets the pause after every fallback batch. Zero disables it.
func WithBatchDelay(delay time.Duration) Option {
	return func(r *Resolver) {
		if delay >= 0 {
			r.batchDelay = delay
		}
	}
}

// WithDefaultRating sets the rating used when no source has data.
func WithDefaultRating(rating float64) Option {
	return func(r *Resolver) {
		if rating > 0 {
			r.defaultRating = rating
		}
	}
}

// WithSleeper replaces the context-aware wait used between batches.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
