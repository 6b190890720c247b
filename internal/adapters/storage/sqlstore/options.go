package sqlstore

import (
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = logger.OrNop(l)
	}
}

// WithClock overrides the recorded_at time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithoutMigrations skips applying the embedded migrations on open.
func WithoutMigrations() Option {
	return func(s *Store) {
		s.migrate = false
	}
}
