package pipeline

import (
	"time"

	"github.com/okian/drillcore/internal/adapters/queue"
	"github.com/okian/drillcore/internal/domain/dedupe"
	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithProber overrides the identity probe. Defaults to pinging the store.
func WithProber(pr Prober) Option {
	return func(p *Pipeline) {
		p.prober = pr
	}
}

// WithActorID sets the actor used until a probe reports one.
func WithActorID(id string) Option {
	return func(p *Pipeline) {
		p.actorID = id
	}
}

// WithQueue sets the pending-event queue.
func WithQueue(q queue.Queue) Option {
	return func(p *Pipeline) {
		p.pending = q
	}
}

// WithDeduper sets the idempotency key recorder.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pipeline) {
		p.seen = d
	}
}

// WithSoftAckMissingSchema controls whether a missing event table is
// acknowledged locally (true) or treated like an outage (false).
func WithSoftAckMissingSchema(enabled bool) Option {
	return func(p *Pipeline) {
		p.softAckMissingSchema = enabled
	}
}

// WithPassScore sets the minimum score for LEVEL_ADVANCED.
func WithPassScore(score int) Option {
	return func(p *Pipeline) {
		if score > 0 {
			p.passScore = score
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = logger.OrNop(l)
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}
