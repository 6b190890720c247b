package model

import "errors"

var (
	ErrUnknownMode     = errors.New("unknown mode")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrUnknownAction   = errors.New("unknown action")
)
