// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/okian/ratingforces/internal/adapters/cache"
	"github.com/okian/ratingforces/internal/domain/performance"
	"github.com/okian/ratingforces/internal/domain/ratings"
	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
)

// Upstream is the contest-data source the service reads from.
type Upstream interface {
	ratings.Source
	ContestStandings(ctx context.Context, contestID int) (types.StandingsResponse, error)
	ContestInfo(ctx context.Context, contestID int) (types.Contest, error)
	UserInfo(ctx context.Context, handle string) (types.UserInfo, error)
}

// Service implements the API dependencies for the performance engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	upstream Upstream
	cache    *cache.Cache
	resolver *ratings.Resolver
	inflight singleflight.Group

	// Configuration
	cacheTTL time.Duration
	dedupe   bool
	workers  int

	// State
	started   bool
	ownsCache bool

	logger logger.Logger
}

// New constructs a new Service reading from upstream.
func New(upstream Upstream, opts ...Option) *Service {
	s := &Service{
		upstream: upstream,
		cacheTTL: cache.DefaultTTL,
		workers:  runtime.NumCPU(),
		logger:   nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the cache and resolver unless they were injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.cache == nil {
		s.cache = cache.New(cache.WithDefaultTTL(s.cacheTTL))
		s.ownsCache = true
	}
	if s.resolver == nil {
		s.resolver = ratings.NewResolver(s.upstream, ratings.WithLogger(s.logger.Named("resolver")))
	}

	s.started = true
	s.logger.Info(ctx, "performance service started",
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Bool("inflightDedupe", s.dedupe),
	)

	return nil
}

// Stop releases the cache if the service created it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.ownsCache {
		s.cache.Close()
		s.cache = nil
		s.ownsCache = false
	}

	s.started = false
	s.logger.Info(context.Background(), "performance service stopped")
}

// components returns the cache and resolver of a started service.
func (s *Service) components() (*cache.Cache, *ratings.Resolver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.cache, s.resolver, nil
}

// ContestStandings returns the official standings of a contest.
func (s *Service) ContestStandings(ctx context.Context, contestID int) (types.StandingsResponse, error) {
	if contestID <= 0 {
		return types.StandingsResponse{}, fmt.Errorf("%w: contest id %d", types.ErrInvalidInput, contestID)
	}
	c, _, err := s.components()
	if err != nil {
		return types.StandingsResponse{}, err
	}
	return s.standings(ctx, c, contestID)
}

// ContestInfo returns contest metadata.
func (s *Service) ContestInfo(ctx context.Context, contestID int) (types.Contest, error) {
	if contestID <= 0 {
		return types.Contest{}, fmt.Errorf("%w: contest id %d", types.ErrInvalidInput, contestID)
	}
	c, _, err := s.components()
	if err != nil {
		return types.Contest{}, err
	}
	return load(ctx, s, c, cache.Key("contest", contestID), func(ctx context.Context) (types.Contest, error) {
		contest, err := s.upstream.ContestInfo(ctx, contestID)
		if err != nil {
			return types.Contest{}, fmt.Errorf("load contest %d: %w", contestID, err)
		}
		return contest, nil
	})
}

// UserInfo returns a user profile.
func (s *Service) UserInfo(ctx context.Context, handle string) (types.UserInfo, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return types.UserInfo{}, fmt.Errorf("%w: empty handle", types.ErrInvalidInput)
	}
	c, _, err := s.components()
	if err != nil {
		return types.UserInfo{}, err
	}
	return load(ctx, s, c, cache.Key("user", handle), func(ctx context.Context) (types.UserInfo, error) {
		user, err := s.upstream.UserInfo(ctx, handle)
		if err != nil {
			return types.UserInfo{}, fmt.Errorf("load user %q: %w", handle, err)
		}
		return user, nil
	})
}

// CalculatePerformance returns the performance rating handle achieved in a
// contest. ErrNotFound is returned when handle is in no standings row.
func (s *Service) CalculatePerformance(ctx context.Context, contestID int, handle string) (int, error) {
	if contestID <= 0 {
		return 0, fmt.Errorf("%w: contest id %d", types.ErrInvalidInput, contestID)
	}
	if strings.TrimSpace(handle) == "" {
		return 0, fmt.Errorf("%w: empty handle", types.ErrInvalidInput)
	}
	c, resolver, err := s.components()
	if err != nil {
		return 0, err
	}

	key := cache.Key("performance", contestID, handle)
	if v, ok := c.Get(key); ok {
		if perf, ok := v.(int); ok {
			return perf, nil
		}
	}

	start := time.Now()
	standings, err := s.standings(ctx, c, contestID)
	if err != nil {
		return 0, err
	}

	row, ok := standings.FindRow(handle)
	if !ok {
		metrics.RecordPerformanceNotFound()
		return 0, fmt.Errorf("%w: handle %q in contest %d", types.ErrNotFound, handle, contestID)
	}

	priors, err := s.priorRatings(ctx, c, resolver, contestID, standings.Rows)
	if err != nil {
		return 0, err
	}

	perf, err := performance.CalculateRating(row.Rank, priors)
	if err != nil {
		return 0, fmt.Errorf("calculate performance of %q: %w", handle, err)
	}
	metrics.RecordPerformanceCalculation(float64(time.Since(start).Milliseconds()))

	c.SetWithTTL(key, perf, s.cacheTTL)
	s.logger.Debug(ctx, "performance calculated",
		logger.Int("contestId", contestID),
		logger.String("handle", handle),
		logger.Int("rank", row.Rank),
		logger.Int("performance", perf),
	)

	return perf, nil
}

// CalculateMultiplePerformances returns one result per handle, in input
// order. Handles missing from the standings get a nil performance; a
// standings or rating failure fails the whole batch.
func (s *Service) CalculateMultiplePerformances(ctx context.Context, contestID int, handles []string) ([]types.PerformanceResult, error) {
	if contestID <= 0 {
		return nil, fmt.Errorf("%w: contest id %d", types.ErrInvalidInput, contestID)
	}
	c, resolver, err := s.components()
	if err != nil {
		return nil, err
	}

	key := cache.Key("performances", contestID, handles)
	if v, ok := c.Get(key); ok {
		if results, ok := v.([]types.PerformanceResult); ok {
			return cloneResults(results), nil
		}
	}

	start := time.Now()
	standings, err := s.standings(ctx, c, contestID)
	if err != nil {
		return nil, err
	}
	priors, err := s.priorRatings(ctx, c, resolver, contestID, standings.Rows)
	if err != nil {
		return nil, err
	}

	results := make([]types.PerformanceResult, len(handles))
	rankOf := make([]int, len(handles))
	var ranks []int
	seen := make(map[int]struct{})
	for i, handle := range handles {
		results[i] = types.PerformanceResult{Handle: handle}
		rankOf[i] = -1

		row, ok := standings.FindRow(handle)
		if !ok {
			metrics.RecordPerformanceNotFound()
			continue
		}
		rankOf[i] = row.Rank
		if _, dup := seen[row.Rank]; !dup {
			seen[row.Rank] = struct{}{}
			ranks = append(ranks, row.Rank)
		}
	}

	byRank, err := s.performancesByRank(ctx, ranks, priors)
	if err != nil {
		return nil, err
	}
	for i, rank := range rankOf {
		if rank < 0 {
			continue
		}
		perf := byRank[rank]
		results[i].Performance = &perf
	}
	metrics.RecordPerformanceCalculation(float64(time.Since(start).Milliseconds()))

	c.SetWithTTL(key, cloneResults(results), s.cacheTTL)
	return results, nil
}

// cloneResults copies results and the performances they point to, so callers
// never share memory with a cached batch.
func cloneResults(results []types.PerformanceResult) []types.PerformanceResult {
	out := make([]types.PerformanceResult, len(results))
	for i, r := range results {
		out[i] = types.PerformanceResult{Handle: r.Handle}
		if r.Performance != nil {
			perf := *r.Performance
			out[i].Performance = &perf
		}
	}
	return out
}

// performancesByRank runs one calculation per distinct rank. Tied rows share
// a rank and therefore a performance.
func (s *Service) performancesByRank(ctx context.Context, ranks []int, priors []float64) (map[int]int, error) {
	out := make(map[int]int, len(ranks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rank := range ranks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perf, err := performance.CalculateRating(rank, priors)
			if err != nil {
				return fmt.Errorf("calculate performance at rank %d: %w", rank, err)
			}
			mu.Lock()
			out[rank] = perf
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) standings(ctx context.Context, c *cache.Cache, contestID int) (types.StandingsResponse, error) {
	return load(ctx, s, c, cache.Key("standings", contestID), func(ctx context.Context) (types.StandingsResponse, error) {
		standings, err := s.upstream.ContestStandings(ctx, contestID)
		if err != nil {
			return types.StandingsResponse{}, fmt.Errorf("load standings of contest %d: %w", contestID, err)
		}
		return standings, nil
	})
}

func (s *Service) priorRatings(ctx context.Context, c *cache.Cache, resolver *ratings.Resolver, contestID int, rows []types.ContestStanding) ([]float64, error) {
	return load(ctx, s, c, cache.Key("ratings", contestID), func(ctx context.Context) ([]float64, error) {
		res, err := resolver.Resolve(ctx, rows, contestID)
		if err != nil {
			return nil, fmt.Errorf("resolve ratings of contest %d: %w", contestID, err)
		}
		s.logger.Info(ctx, "ratings resolved",
			logger.Int("contestId", contestID),
			logger.String("path", string(res.Path)),
			logger.Int("contestants", len(res.Ratings)),
			logger.Int("batches", res.Batches),
		)
		return res.Ratings, nil
	})
}

// load returns the cached value under key or fetches and caches it.
// Errors are never cached. With in-flight dedupe on, concurrent misses for
// one key share a single fetch.
func load[T any](ctx context.Context, s *Service, c *cache.Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	fill := func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.SetWithTTL(key, v, s.cacheTTL)
		return v, nil
	}

	var (
		v   any
		err error
	)
	if s.dedupe {
		v, err, _ = s.inflight.Do(key, fill)
	} else {
		v, err = fill()
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"cacheTTL":       s.cacheTTL.String(),
		"inflightDedupe": s.dedupe,
		"workers":        s.workers,
	}

	if s.started {
		cs := s.cache.Stats()
		stats["cacheEntries"] = cs.Keys
		stats["cacheHits"] = cs.Hits
		stats["cacheMisses"] = cs.Misses
		stats["cacheEvictions"] = cs.Evictions
		stats["cacheHitRate"] = s.cache.HitRate()
	}

	return stats
}
