package api

import (
	"errors"
	"net/http"

	"github.com/okian/ratingforces/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidContestID = errors.New("invalid contest id")
	ErrInternal         = errors.New("internal error")
)

// Error records the operation that failed and an optional kind that
// errors.Is can match.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap annotates err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind annotates err with op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind creates an error of kind with a message.
func NewKind(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// classify maps an error to an HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidContestID):
		return http.StatusBadRequest, "invalid_contest_id"
	case errors.Is(err, ErrBadRequest), errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
