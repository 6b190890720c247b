package pipeline

import "errors"

var (
	ErrQueueFull = errors.New("pending queue full")
	ErrNoStore   = errors.New("no event store configured")
)
