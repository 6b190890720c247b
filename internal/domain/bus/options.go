package bus

import (
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize bounds the ring buffer returned by History.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		b.historySize = n
	}
}

// WithLogger sets the logger used for subscriber failures.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		b.log = logger.OrNop(l)
	}
}

// WithClock overrides the time source used by Emit.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// WithActorID stamps events created by Emit with the given actor.
func WithActorID(id string) Option {
	return func(b *Bus) {
		b.actorID = id
	}
}
