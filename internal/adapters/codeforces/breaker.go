package codeforces

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
)

const (
	breakerName        = "codeforces-api"
	breakerMinRequests = 10
	breakerTripRatio   = 0.6
)

func newBreaker(timeout time.Duration, log logger.Logger) *gobreaker.CircuitBreaker[[]byte] {
	metrics.UpdateCircuitBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateCircuitBreakerState(name, stateToFloat(to))
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
		// A FAILED envelope proves the upstream is answering.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr)
		},
	})
}

func isRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
