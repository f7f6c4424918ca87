// Package perfcheck drives a running service end to end: it fetches a
// contest's standings, computes every contestant's performance through the
// batch endpoint and verifies the results are consistent with the ranks.
package perfcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/ratingforces/pkg/logger"
)

// ErrInconsistent is returned when the service's performances contradict the
// standings.
var ErrInconsistent = errors.New("inconsistent performances")

// Run executes the complete performance check.
func Run(ctx context.Context, config *Config) (*Report, error) {
	stats := Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting performance check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("contestId", config.ContestID),
		logger.Int("top", config.Top),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	if config.ContestID <= 0 {
		return nil, fmt.Errorf("contest id must be positive, got %d", config.ContestID)
	}

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch standings
	standings, err := fetchStandings(ctx, client, config.ContestID)
	if err != nil {
		return nil, fmt.Errorf("standings retrieval failed: %w", err)
	}
	rows := standings.Rows
	if config.Top > 0 && len(rows) > config.Top {
		rows = rows[:config.Top]
	}
	stats.RowsFetched = len(standings.Rows)

	handles := make([]string, 0, len(rows))
	for _, row := range rows {
		if h := row.Handle(); h != "" {
			handles = append(handles, h)
		}
	}
	stats.HandlesChecked = len(handles)

	// Step 3: Compute performances
	perfs, err := fetchPerformances(ctx, config, client, handles, &stats)
	if err != nil {
		return nil, fmt.Errorf("performance retrieval failed: %w", err)
	}

	// Step 4: Verify
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		h := row.Handle()
		if h == "" {
			continue
		}
		entries = append(entries, Entry{Rank: row.Rank, Handle: h, Performance: perfs[h]})
	}
	missing, violations := verifyEntries(entries)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if stats.Duration > 0 {
		stats.HandlesPerSecond = float64(stats.HandlesChecked) / stats.Duration.Seconds()
	}

	report := &Report{
		ContestID:  config.ContestID,
		Entries:    entries,
		Missing:    missing,
		Violations: violations,
		Stats:      stats,
	}

	if config.Verbose {
		displayTopPerformers(ctx, entries, len(entries))
	} else {
		displayTopPerformers(ctx, entries, 10)
	}

	// Step 5: Save report
	if config.OutputFile != "" {
		if err := saveReport(ctx, config.OutputFile, report); err != nil {
			logger.Get().Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	displayFinalStats(ctx, report)

	if len(missing) > 0 || len(violations) > 0 {
		return report, fmt.Errorf("%w: %d missing, %d violations", ErrInconsistent, len(missing), len(violations))
	}
	logger.Get().Info(ctx, "performance check passed")
	return report, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	logger.Get().Info(ctx, "checking service health")
	if err := client.get(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveReport writes the report as indented JSON.
func saveReport(ctx context.Context, filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, report *Report) {
	s := report.Stats
	logger.Get().Info(ctx, "final statistics",
		logger.Int("rowsFetched", s.RowsFetched),
		logger.Int("handlesChecked", s.HandlesChecked),
		logger.Int("requestsSent", s.RequestsSent),
		logger.Int("requestsFailed", s.RequestsFailed),
		logger.Int("missing", len(report.Missing)),
		logger.Int("violations", len(report.Violations)),
		logger.String("duration", s.Duration.String()),
		logger.Float64("handlesPerSecond", s.HandlesPerSecond))
}
