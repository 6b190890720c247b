package catalog

import "errors"

var (
	ErrUnreadable = errors.New("catalog unreadable")
	ErrInvalid    = errors.New("invalid catalog")
)
