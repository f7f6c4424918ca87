// Package performance derives a contest performance rating from a rank and
// the prior ratings of the field.
//
// The seed of a rating r is the expected number of competitors that would
// finish ahead of a contestant rated r:
//
//	Seed(r) = Σ 1 / (1 + 10^((r-c)/400))   over every competitor rating c
//
// Seed is strictly decreasing in r. CalculateRating searches [MinRating,
// MaxRating] for the rating whose seed equals rank - 0.5.
package performance

import (
	"fmt"
	"math"

	"github.com/okian/ratingforces/internal/domain/types"
)

// Search parameters.
const (
	MinRating  = 1
	MaxRating  = 5000
	EloScale   = 400
	Iterations = 30

	// rankOffset centers the target between adjacent integer ranks.
	rankOffset = 0.5
)

// WinProbability is the Elo expected score between ratings a and b: the
// chance that the contestant rated b finishes ahead of the one rated a.
// It is not the chance that a outscores b; that is WinProbability(b, a).
func WinProbability(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (a-b)/EloScale))
}

// Seed sums WinProbability(rating, c) over ratings.
func Seed(rating float64, ratings []float64) float64 {
	var total float64
	for _, c := range ratings {
		total += WinProbability(rating, c)
	}
	return total
}

// CalculateRating returns the rating a contestant needs so that their seed
// against ratings matches the observed rank. rank must be at least 1 and
// ratings must not be empty; ranks past len(ratings) are allowed and land
// near the search bounds. ratings is not modified.
func CalculateRating(rank int, ratings []float64) (int, error) {
	if rank < 1 {
		return 0, fmt.Errorf("rank %d: %w", rank, types.ErrInvalidInput)
	}
	if len(ratings) == 0 {
		return 0, fmt.Errorf("empty competitor set: %w", types.ErrInvalidInput)
	}

	target := float64(rank) - rankOffset
	lo, hi := float64(MinRating), float64(MaxRating)

	for i := 0; i < Iterations; i++ {
		mid := (lo + hi) / 2
		if Seed(mid, ratings) > target {
			// too many expected finishers ahead: the root is above mid
			lo = mid
		} else {
			hi = mid
		}
	}

	return int(math.Round((lo + hi) / 2)), nil
}
