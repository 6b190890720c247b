package service

import (
	"time"

	"github.com/okian/drillcore/internal/config"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/pipeline"
	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithStore sets the durable event store.
func WithStore(st pipeline.Store) Option {
	return func(s *Session) {
		s.store = st
	}
}

// WithCache sets the rotation cache.
func WithCache(c rotation.Cache) Option {
	return func(s *Session) {
		s.cache = c
	}
}

// WithCatalog sets the rotation catalog provider.
func WithCatalog(c rotation.Catalog) Option {
	return func(s *Session) {
		s.catalog = c
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithActorID sets the trainee id stamped on events.
func WithActorID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.actorID = id
		}
	}
}

// WithQueueSize bounds the offline queue.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the idempotency key recorder.
func WithDedupeSize(size int) Option {
	return func(s *Session) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithSoftAckMissingSchema toggles local acknowledgement when the event table is missing.
func WithSoftAckMissingSchema(on bool) Option {
	return func(s *Session) {
		s.softAck = on
	}
}

// WithQuestionBudget sets the per-question budget for speed tiers.
func WithQuestionBudget(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithLeakDetection sets the analyzer window and threshold.
func WithLeakDetection(window, threshold int) Option {
	return func(s *Session) {
		if window > 0 {
			s.leakWindow = window
		}
		if threshold > 0 {
			s.leakThreshold = threshold
		}
	}
}

// WithHealthInterval sets the monitor period.
func WithHealthInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.healthInterval = d
		}
	}
}

// WithRotationOptions passes options through to the scheduler.
func WithRotationOptions(opts ...rotation.Option) Option {
	return func(s *Session) {
		s.rotationOpts = append(s.rotationOpts, opts...)
	}
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfig applies the tunables of cfg. Store, cache and catalog are wired separately.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) {
		for _, opt := range []Option{
			WithActorID(cfg.ActorID),
			WithQueueSize(cfg.PendingQueueSize),
			WithDedupeSize(cfg.DedupeSize),
			WithSoftAckMissingSchema(cfg.SoftAckMissingSchema),
			WithQuestionBudget(cfg.QuestionBudget()),
			WithLeakDetection(cfg.LeakWindow, cfg.LeakThreshold),
			WithHealthInterval(cfg.HealthCheckInterval()),
			WithRotationOptions(
				rotation.WithEpoch(cfg.RotationEpoch()),
				rotation.WithVarietyWindow(cfg.VarietyWindow()),
				rotation.WithHistoryCap(cfg.HistoryCap),
				rotation.WithMasteryFloor(cfg.MasteryFloor),
				rotation.WithLeakGamesCap(cfg.LeakGamesCap),
				rotation.WithRecommendedCount(cfg.RecommendedCount),
			),
		} {
			opt(s)
		}
	}
}
