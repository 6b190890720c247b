package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("operation not valid in current run state")
)
