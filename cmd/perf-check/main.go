package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/ratingforces/internal/perfcheck"
	"github.com/okian/ratingforces/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 2 * time.Minute
	defaultTestTimeout = 30 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		contestID  = flag.Int("contest", 0, "Contest id to check")
		top        = flag.Int("top", 0, "Only check the first N rows (0 checks all)")
		chunk      = flag.Int("chunk", perfcheck.DefaultChunkSize, "Handles per batch request")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the JSON report to this file")
		verbose    = flag.Bool("verbose", false, "Log every checked contestant")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		perfcheck.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &perfcheck.Config{
		BaseURL:    *baseURL,
		ContestID:  *contestID,
		Top:        *top,
		ChunkSize:  *chunk,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := perfcheck.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Check failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
