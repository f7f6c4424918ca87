package perfcheck

import (
	"time"

	"github.com/okian/ratingforces/internal/domain/types"
)

// Config holds configuration for a performance check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	ContestID  int           // Contest to check
	Top        int           // Only check the first Top rows; 0 checks all
	ChunkSize  int           // Handles per POST .../performances request
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for the report
	Verbose    bool          // Enable verbose logging
}

// Entry is one checked contestant.
type Entry struct {
	Rank        int    `json:"rank"`
	Handle      string `json:"handle"`
	Performance *int   `json:"performance"`
}

// Violation is a pair of entries whose performances contradict their ranks.
type Violation struct {
	Better Entry  `json:"better"`
	Worse  Entry  `json:"worse"`
	Reason string `json:"reason"`
}

// Report is the outcome of a run.
type Report struct {
	ContestID  int         `json:"contestId"`
	Entries    []Entry     `json:"entries"`
	Missing    []string    `json:"missing,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	Stats      Stats       `json:"stats"`
}

// Stats holds run statistics.
type Stats struct {
	RowsFetched      int           `json:"rowsFetched"`
	HandlesChecked   int           `json:"handlesChecked"`
	RequestsSent     int           `json:"requestsSent"`
	RequestsFailed   int           `json:"requestsFailed"`
	StartTime        time.Time     `json:"startTime"`
	EndTime          time.Time     `json:"endTime"`
	Duration         time.Duration `json:"duration"`
	HandlesPerSecond float64       `json:"handlesPerSecond"`
}

type performancesRequest struct {
	Handles []string `json:"handles"`
}

type performancesResponse struct {
	Performances []types.PerformanceResult `json:"performances"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
