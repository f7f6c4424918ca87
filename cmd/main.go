package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/ratingforces/internal/adapters/cache"
	"github.com/okian/ratingforces/internal/adapters/codeforces"
	"github.com/okian/ratingforces/internal/adapters/http/api"
	"github.com/okian/ratingforces/internal/adapters/http/site"
	"github.com/okian/ratingforces/internal/adapters/http/swagger"
	app "github.com/okian/ratingforces/internal/app"
	"github.com/okian/ratingforces/internal/config"
	"github.com/okian/ratingforces/internal/domain/ratings"
	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
	// A fallback over many batches can outlive the upstream timeout.
	writeTimeout              = 2 * time.Minute
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithOptions(logger.Options{Format: logger.Format(cfg.LogFormat), Writer: os.Stdout}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the components and serves until ctx is cancelled or the
// listener fails.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, results := newService(cfg, log)
	defer results.Close()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
			return err
		}
		log.Info(ctx, "server stopped")
		return nil
	})

	return g.Wait()
}

// newService builds the upstream client, resolver, cache and service from cfg.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, *cache.Cache) {
	client := codeforces.New(
		codeforces.WithBaseURL(cfg.UpstreamBaseURL),
		codeforces.WithTimeout(cfg.UpstreamTimeout()),
		codeforces.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		codeforces.WithLogger(log.Named("codeforces")),
	)

	resolver := ratings.NewResolver(client,
		ratings.WithBatchSize(cfg.BatchSize),
		ratings.WithBatchDelay(cfg.BatchDelay()),
		ratings.WithDefaultRating(cfg.DefaultRating),
		ratings.WithLogger(log.Named("resolver")),
	)

	results := cache.New(
		cache.WithDefaultTTL(cfg.CacheTTL()),
		cache.WithSweepInterval(cfg.CacheSweep()),
	)

	svc := app.New(client,
		app.WithLogger(log.Named("service")),
		app.WithCache(results),
		app.WithResolver(resolver),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithInflightDedupe(cfg.DedupeInflight),
		app.WithWorkers(cfg.Workers),
	)
	return svc, results
}

// newHandler registers every route and wraps the mux with the request middleware.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	site.Register(ctx, mux)
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithMaxHandles(cfg.MaxHandles),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)

	return apiServer.Handler(mux)
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
