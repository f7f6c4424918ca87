package codeforces

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/ratingforces/internal/domain/types"
)

// ErrEmptyResult is returned when a single-item lookup yields nothing.
var ErrEmptyResult = errors.New("empty result")

// APIError is a well-formed FAILED answer from the API, such as
// "contestId: Contest with id 99999 not found".
type APIError struct {
	Method  string
	Comment string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codeforces %s: %s", e.Method, e.Comment)
}

// Is matches ErrUpstreamUnavailable for every API error and ErrNotFound
// when the API reports a missing handle or contest.
func (e *APIError) Is(target error) bool {
	switch target {
	case types.ErrUpstreamUnavailable:
		return true
	case types.ErrNotFound:
		return strings.Contains(strings.ToLower(e.Comment), "not found")
	default:
		return false
	}
}

// StatusError is a non-2xx response that did not carry an API envelope.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("codeforces %s: http %d: %s", e.Method, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return types.ErrUpstreamUnavailable }
