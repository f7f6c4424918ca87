package perfcheck

import "os"

// ShowHelp prints usage information for the perf-check tool.
func ShowHelp() {
	os.Stdout.WriteString(`Ratingforces Performance Check
==============================

Computes every contestant's performance for one contest through a running
service and verifies the results never rise as rank gets worse.

Usage:
  go run ./cmd/perf-check -contest <id> [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -contest int
        Contest id to check (required)
  -top int
        Only check the first N rows (default 0, all rows)
  -chunk int
        Handles per batch request (default 500)
  -workers int
        Number of concurrent requests (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 2m)
  -output string
        Write the JSON report to this file
  -verbose
        Log every checked contestant
  -help
        Show this help message

Examples:
  # Check the top 200 of contest 1900
  go run ./cmd/perf-check -contest 1900 -top 200

  # Check a whole contest against another instance and keep the report
  go run ./cmd/perf-check -contest 1900 -url http://localhost:8080 -output reports/1900.json
`)
}
