package ratings

import (
	"errors"

	"github.com/okian/ratingforces/internal/domain/types"
)

// FallbackError is a failed user profile lookup during resolution. It always
// matches types.ErrUpstreamUnavailable and never types.ErrNotFound: the
// contestants being resolved are in the standings, whatever the upstream
// comment says. Other targets such as context.Canceled are matched against
// the underlying error.
type FallbackError struct {
	Err error
}

func (e *FallbackError) Error() string {
	return "resolve ratings via user info: " + e.Err.Error()
}

// Is reports whether target describes this failure.
func (e *FallbackError) Is(target error) bool {
	switch target {
	case types.ErrUpstreamUnavailable:
		return true
	case types.ErrNotFound:
		return false
	default:
		return errors.Is(e.Err, target)
	}
}

// As finds the first error in the underlying chain that matches target.
func (e *FallbackError) As(target any) bool {
	return errors.As(e.Err, target)
}
