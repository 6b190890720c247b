package run

import "errors"

var (
	ErrInvalidQuestionCount = errors.New("run requires exactly 20 questions")
	ErrInvalidQuestion      = errors.New("invalid question")
	ErrRunInProgress        = errors.New("a run is already in progress")
	ErrNoRunToRestart       = errors.New("no run to restart")
)
