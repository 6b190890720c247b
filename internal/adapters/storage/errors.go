package storage

import "errors"

// Sentinel error classes. Adapters wrap driver errors with these so callers
// can tell a lost connection from a backend that lacks the schema.
var (
	// ErrUnavailable means the store could not be reached or the write did not land. Retry later.
	ErrUnavailable = errors.New("store unavailable")
	// ErrSchemaMissing means the backend answered but the event table does not exist.
	ErrSchemaMissing = errors.New("store schema missing")
)
