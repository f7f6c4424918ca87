package perfcheck

import (
	"context"
	"fmt"

	"github.com/okian/ratingforces/pkg/logger"
)

// verifyEntries checks that performance never increases as rank gets worse
// and that rows sharing a rank share a performance. Entries must be sorted by
// rank. Entries without a performance are reported as missing.
func verifyEntries(entries []Entry) (missing []string, violations []Violation) {
	var prev *Entry
	for i := range entries {
		e := entries[i]
		if e.Performance == nil {
			missing = append(missing, e.Handle)
			continue
		}
		if prev != nil {
			switch {
			case e.Rank == prev.Rank && *e.Performance != *prev.Performance:
				violations = append(violations, Violation{
					Better: *prev, Worse: e,
					Reason: fmt.Sprintf("tied at rank %d with %d vs %d", e.Rank, *prev.Performance, *e.Performance),
				})
			case e.Rank > prev.Rank && *e.Performance > *prev.Performance:
				violations = append(violations, Violation{
					Better: *prev, Worse: e,
					Reason: fmt.Sprintf("rank %d scored %d above rank %d with %d", e.Rank, *e.Performance, prev.Rank, *prev.Performance),
				})
			}
		}
		prev = &entries[i]
	}
	return missing, violations
}

func displayTopPerformers(ctx context.Context, entries []Entry, limit int) {
	for i, e := range entries {
		if i >= limit {
			return
		}
		perf := -1
		if e.Performance != nil {
			perf = *e.Performance
		}
		logger.Get().Info(ctx, "performer",
			logger.Int("rank", e.Rank),
			logger.String("handle", e.Handle),
			logger.Int("performance", perf))
	}
}
