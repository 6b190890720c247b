package rotation

import (
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithScorer sets the item scorer.
func WithScorer(sc *Scorer) Option {
	return func(s *Scheduler) {
		s.scorer = sc
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		s.log = logger.OrNop(l)
	}
}

// WithEpoch sets how long a selection stays valid.
func WithEpoch(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.epoch = d
		}
	}
}

// WithVarietyWindow sets the look-back of the variety term.
func WithVarietyWindow(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.varietyWindow = d
		}
	}
}

// WithHistoryCap bounds the rotation history.
func WithHistoryCap(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithMasteryFloor sets the mastery under which an item is a leak game.
func WithMasteryFloor(f float64) Option {
	return func(s *Scheduler) {
		s.masteryFloor = f
	}
}

// WithLeakGamesCap bounds the leak games shortlist.
func WithLeakGamesCap(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.leakGamesCap = n
		}
	}
}

// WithRecommendedCount sets how many items are recommended.
func WithRecommendedCount(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.recommended = n
		}
	}
}
