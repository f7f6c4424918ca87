package performance_test

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/okian/ratingforces/internal/domain/performance"
	"github.com/okian/ratingforces/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func repeat(r float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestWinProbability(t *testing.T) {
	Convey("Given two ratings", t, func() {
		Convey("When they are equal", func() {
			Convey("Then the probability is one half", func() {
				So(performance.WinProbability(1500, 1500), ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When a is 400 points higher than b", func() {
			Convey("Then b finishes ahead one time in eleven", func() {
				So(performance.WinProbability(1900, 1500), ShouldAlmostEqual, 1.0/11.0, 1e-12)
			})
		})

		Convey("When a rises and b stays fixed", func() {
			Convey("Then the value falls, since it is b's chance to finish ahead", func() {
				So(performance.WinProbability(1400, 1500), ShouldBeGreaterThan, 0.5)
				So(performance.WinProbability(1600, 1500), ShouldBeLessThan, 0.5)
				So(performance.WinProbability(1500, 1900), ShouldAlmostEqual, 10.0/11.0, 1e-12)
			})
		})

		Convey("When the arguments are swapped", func() {
			Convey("Then the probabilities are complementary", func() {
				p := performance.WinProbability(1720, 1333)
				q := performance.WinProbability(1333, 1720)
				So(p+q, ShouldAlmostEqual, 1.0, 1e-12)
			})
		})
	})
}

func TestSeed(t *testing.T) {
	Convey("Given a competitor field", t, func() {
		ratings := []float64{1200, 1500, 1800, 2100, 2400}

		Convey("When the rating increases", func() {
			Convey("Then the seed strictly decreases", func() {
				prev := performance.Seed(performance.MinRating, ratings)
				for r := 100.0; r <= performance.MaxRating; r += 100 {
					cur := performance.Seed(r, ratings)
					So(cur, ShouldBeLessThan, prev)
					prev = cur
				}
			})
		})

		Convey("When all competitors share the evaluated rating", func() {
			Convey("Then the seed is half the field size", func() {
				So(performance.Seed(1500, repeat(1500, 8)), ShouldAlmostEqual, 4.0, 1e-12)
			})
		})

		Convey("When competitors are duplicated", func() {
			Convey("Then their contributions are summed", func() {
				single := performance.Seed(1600, []float64{1400})
				So(performance.Seed(1600, []float64{1400, 1400, 1400}), ShouldAlmostEqual, 3*single, 1e-12)
			})
		})
	})
}

func TestCalculateRating(t *testing.T) {
	Convey("Given a field of four 1500-rated competitors", t, func() {
		ratings := repeat(1500, 4)

		Convey("When the contestant wins", func() {
			perf, err := performance.CalculateRating(1, ratings)

			Convey("Then the seed at the result is close to rank - 0.5", func() {
				So(err, ShouldBeNil)
				So(performance.Seed(float64(perf), ratings), ShouldAlmostEqual, 0.5, 0.01)
			})

			Convey("And it matches the closed form 1500 + 400*log10(7)", func() {
				expected := 1500 + 400*math.Log10(7)
				So(float64(perf), ShouldAlmostEqual, expected, 1.0)
			})
		})
	})

	Convey("Given a uniform field of rating R", t, func() {
		for _, n := range []int{1, 3, 5, 9, 101} {
			ratings := repeat(1850, n)
			median := (n + 1) / 2

			Convey("When the contestant finishes at the median of "+strconv.Itoa(n), func() {
				perf, err := performance.CalculateRating(median, ratings)

				Convey("Then the performance is about R", func() {
					So(err, ShouldBeNil)
					So(perf, ShouldAlmostEqual, 1850, 1)
				})
			})
		}
	})

	Convey("Given a mixed field", t, func() {
		ratings := []float64{2400, 2100, 1900, 1700, 1650, 1500, 1400, 1200, 1100, 900}

		Convey("When rank gets worse", func() {
			Convey("Then the performance never increases", func() {
				prev := math.MaxInt
				for rank := 1; rank <= len(ratings)+3; rank++ {
					perf, err := performance.CalculateRating(rank, ratings)
					So(err, ShouldBeNil)
					So(perf, ShouldBeLessThanOrEqualTo, prev)
					prev = perf
				}
			})
		})

		Convey("When every rank is solved", func() {
			Convey("Then each result is a root of seed = rank - 0.5", func() {
				for rank := 1; rank <= len(ratings); rank++ {
					perf, err := performance.CalculateRating(rank, ratings)
					So(err, ShouldBeNil)
					// rounding to an integer moves the seed by at most |Seed'|*0.5
					So(performance.Seed(float64(perf), ratings), ShouldAlmostEqual, float64(rank)-0.5, 0.01)
				}
			})
		})

		Convey("When the input slice is passed", func() {
			cp := append([]float64(nil), ratings...)
			_, err := performance.CalculateRating(4, ratings)

			Convey("Then it is left untouched", func() {
				So(err, ShouldBeNil)
				So(ratings, ShouldResemble, cp)
			})
		})
	})

	Convey("Given ranks far outside the field", t, func() {
		ratings := []float64{1500, 1500}

		Convey("When the rank exceeds the field size by a lot", func() {
			perf, err := performance.CalculateRating(50, ratings)

			Convey("Then the result sits at the lower bound", func() {
				So(err, ShouldBeNil)
				So(perf, ShouldEqual, performance.MinRating)
			})
		})

		Convey("When a huge field is beaten", func() {
			perf, err := performance.CalculateRating(1, repeat(100, 3))

			Convey("Then the result is within the domain", func() {
				So(err, ShouldBeNil)
				So(perf, ShouldBeBetweenOrEqual, performance.MinRating, performance.MaxRating)
			})
		})
	})

	Convey("Given invalid input", t, func() {
		Convey("When the competitor set is empty", func() {
			_, err := performance.CalculateRating(1, nil)

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the rank is zero", func() {
			_, err := performance.CalculateRating(0, []float64{1500})

			Convey("Then ErrInvalidInput is returned", func() {
				So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}
