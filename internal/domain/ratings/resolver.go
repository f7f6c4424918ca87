package ratings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
)

// Default resolver configuration.
const (
	// DefaultBatchSize is the user.info handle limit documented upstream.
	DefaultBatchSize  = 5000
	DefaultBatchDelay = 500 * time.Millisecond
)

// Source provides the two rating feeds the resolver falls back between.
type Source interface {
	// RatingChanges returns the rating movements a contest caused.
	RatingChanges(ctx context.Context, contestID int) ([]types.RatingChange, error)
	// UserInfos returns profiles for a batch of handles.
	UserInfos(ctx context.Context, handles []string) ([]types.UserInfo, error)
}

// Path tells which feed produced a Resolution.
type Path string

const (
	PathRatingChanges Path = "rating_changes"
	PathUserInfo      Path = "user_info"
	PathDefault       Path = "default"
)

// Resolution holds one prior rating per standings row, in row order.
type Resolution struct {
	Ratings []float64
	Path    Path
	// Batches is the number of user profile requests issued by the fallback.
	Batches int
	// PrimaryErr is the rating-change failure that triggered the fallback.
	PrimaryErr error
}

// Resolver produces prior ratings for contest standings.
type Resolver struct {
	source        Source
	batchSize     int
	batchDelay    time.Duration
	defaultRating float64
	sleep         func(ctx context.Context, d time.Duration) error
	logger        logger.Logger
}

// NewResolver creates a Resolver reading from source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:        source,
		batchSize:     DefaultBatchSize,
		batchDelay:    DefaultBatchDelay,
		defaultRating: types.DefaultRating,
		sleep:         sleepContext,
		logger:        logger.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// primaryOutcome tags the rating-change attempt as ok or failed.
type primaryOutcome struct {
	oldRatings map[string]int
	err        error
}

func (o primaryOutcome) ok() bool { return o.err == nil }

// Resolve returns the prior rating of every row of standings.
//
// Rating changes are tried first; contestants missing from them get the
// default rating. If that feed fails the handles are looked up in batches
// of user profiles, pausing after every batch. A fallback failure is
// returned to the caller.
func (r *Resolver) Resolve(ctx context.Context, standings []types.ContestStanding, contestID int) (Resolution, error) {
	if len(standings) == 0 {
		return Resolution{Ratings: []float64{}, Path: PathDefault}, nil
	}

	handles := make([]string, len(standings))
	for i, row := range standings {
		handles[i] = row.Handle()
	}

	primary := r.fetchRatingChanges(ctx, contestID)
	if primary.ok() {
		path := PathRatingChanges
		if len(primary.oldRatings) == 0 {
			path = PathDefault
		}
		metrics.RecordRatingResolution(string(path))
		return Resolution{Ratings: r.project(handles, primary.oldRatings), Path: path}, nil
	}

	r.logger.Warn(ctx, "rating changes unavailable, falling back to user info",
		logger.Int("contestId", contestID),
		logger.Int("handles", len(handles)),
		logger.Error(primary.err))

	current, batches, err := r.fetchUserRatings(ctx, handles)
	if err != nil {
		return Resolution{}, &FallbackError{Err: err}
	}
	metrics.RecordRatingResolution(string(PathUserInfo))

	return Resolution{
		Ratings:    r.project(handles, current),
		Path:       PathUserInfo,
		Batches:    batches,
		PrimaryErr: primary.err,
	}, nil
}

func (r *Resolver) fetchRatingChanges(ctx context.Context, contestID int) primaryOutcome {
	changes, err := r.source.RatingChanges(ctx, contestID)
	if err != nil {
		return primaryOutcome{err: err}
	}
	old := make(map[string]int, len(changes))
	for _, c := range changes {
		old[strings.ToLower(c.Handle)] = c.OldRating
	}
	return primaryOutcome{oldRatings: old}
}

// fetchUserRatings maps lowercased handle to current rating. Unrated
// profiles are left out so they fall back to the default.
func (r *Resolver) fetchUserRatings(ctx context.Context, handles []string) (map[string]int, int, error) {
	current := make(map[string]int, len(handles))
	batches := 0

	// Rows without members have no handle to look up; they take the default.
	lookup := make([]string, 0, len(handles))
	for _, h := range handles {
		if h != "" {
			lookup = append(lookup, h)
		}
	}
	handles = lookup

	for start := 0; start < len(handles); start += r.batchSize {
		end := min(start+r.batchSize, len(handles))

		users, err := r.source.UserInfos(ctx, handles[start:end])
		if err != nil {
			return nil, batches, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		batches++
		metrics.RecordRatingBatch()

		for _, u := range users {
			if u.Rating != 0 {
				current[strings.ToLower(u.Handle)] = u.Rating
			}
		}

		if err := r.sleep(ctx, r.batchDelay); err != nil {
			return nil, batches, err
		}
	}

	return current, batches, nil
}

func (r *Resolver) project(handles []string, known map[string]int) []float64 {
	out := make([]float64, len(handles))
	for i, h := range handles {
		if rating, ok := known[strings.ToLower(h)]; ok {
			out[i] = float64(rating)
			continue
		}
		out[i] = r.defaultRating
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("batch delay interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
