package types

import "errors"

// Error taxonomy shared by the engine and its adapters. Match with errors.Is.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
)
