package run

import (
	"math/rand"
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock overrides the time source used for response times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRand sets the source used to shuffle questions on restart.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithQuestionBudget sets the per-question budget speed tiers are measured against.
func WithQuestionBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.budget = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.log = logger.OrNop(l)
	}
}
