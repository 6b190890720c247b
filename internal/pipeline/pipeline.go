// Package pipeline decides which events must be durably recorded before the
// progress they carry counts, and holds them back while the store is unreachable.
//
// Every event is published on the bus first. Authoritative events (run started,
// answer submitted, run completed, level advanced) outside practice mode are
// then written synchronously when online, or queued when offline and replayed
// in order once a health check sees the store again.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/adapters/queue"
	"github.com/okian/drillcore/internal/adapters/storage"
	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/dedupe"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

const (
	defaultPassScore = 85
	sourcePipeline   = "pipeline"
)

// Store is the durable, append-only event log.
type Store interface {
	Append(ctx context.Context, r storage.Record) error
	Ping(ctx context.Context) error
}

// Identity is the result of a reachability probe.
type Identity struct {
	ActorID   string
	Reachable bool
}

// Prober resolves the current actor and whether the backend is reachable.
type Prober interface {
	Probe(ctx context.Context) (Identity, error)
}

// Receipt reports what happened to an emitted event. It never carries a panic
// across the pipeline boundary; callers decide how to surface it.
type Receipt struct {
	Event model.Event
	// Success is true when the event counts: persisted, already persisted, or not required to be.
	Success bool
	// Offline is true when the pipeline was or went offline while handling the event.
	Offline bool
	// Queued is true when the event waits in the pending queue.
	Queued bool
	// LocalOnly is true when nothing was written durably yet the event is acknowledged.
	LocalOnly bool
	Err       error
}

// CompletionReceipt is returned by RunCompleted.
type CompletionReceipt struct {
	Completed Receipt
	// Advanced is nil unless LEVEL_ADVANCED was derived.
	Advanced *Receipt
}

// Stats is a point-in-time view for diagnostics.
type Stats struct {
	Online          bool      `json:"online"`
	Pending         int       `json:"pending"`
	PendingCapacity int       `json:"pending_capacity"`
	LastHealthCheck time.Time `json:"last_health_check"`
	ActorID         string    `json:"actor_id"`
	RecordedKeys    int64     `json:"recorded_keys"`
}

// Pipeline is the authoritative event gate for one session.
type Pipeline struct {
	bus     *bus.Bus
	store   Store
	prober  Prober
	pending queue.Queue
	seen    dedupe.Deduper
	log     logger.Logger
	now     func() time.Time

	softAckMissingSchema bool
	passScore            int

	// mu guards the fields below and serializes store writes so queued
	// events are always replayed ahead of newer ones.
	mu        sync.Mutex
	online    bool
	lastCheck time.Time
	actorID   string
}

// New creates a Pipeline that publishes on b and writes to store.
func New(b *bus.Bus, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		bus:                  b,
		store:                store,
		log:                  logger.Nop(),
		now:                  time.Now,
		softAckMissingSchema: true,
		passScore:            defaultPassScore,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pending == nil {
		p.pending = queue.NewInMemoryQueue()
	}
	if p.seen == nil {
		p.seen = dedupe.NewInMemoryDeduper()
	}
	if p.prober == nil && store != nil {
		p.prober = &StoreProber{Store: store, ActorID: p.actorID}
	}
	metrics.UpdatePipelineOnline(false)
	return p
}

// Init probes the backend and sets the initial online state.
func (p *Pipeline) Init(ctx context.Context) bool {
	online := p.HealthCheck(ctx)
	p.log.Info(ctx, "pipeline initialized",
		logger.Bool("online", online),
		logger.String("actor_id", p.ActorID()),
	)
	return online
}

// Emit publishes payload on the bus and records it according to its kind.
func (p *Pipeline) Emit(ctx context.Context, payload model.Payload, source string) Receipt {
	e := model.NewEvent(payload, source, p.ActorID(), p.now())
	metrics.RecordEventEmitted(string(e.Kind))
	p.bus.Publish(ctx, e)

	switch {
	case e.Authoritative():
		return p.record(ctx, e)
	case model.IsAudit(e.Kind):
		return p.audit(ctx, e)
	default:
		return Receipt{Event: e, Success: true, LocalOnly: true}
	}
}

// RunCompleted emits RUN_COMPLETED and, for a passed run scoring at least the
// pass score, the derived LEVEL_ADVANCED. Practice runs never advance.
func (p *Pipeline) RunCompleted(ctx context.Context, rc model.RunCompleted, source string) CompletionReceipt {
	out := CompletionReceipt{Completed: p.Emit(ctx, rc, source)}
	if rc.Passed && rc.Score >= p.passScore && rc.Mode != model.ModePractice {
		adv := p.Emit(ctx, model.LevelAdvanced{
			RunRef:       rc.RunRef,
			Difficulty:   rc.Difficulty,
			Score:        rc.Score,
			MasteryDelta: rc.MasteryDelta,
		}, sourcePipeline)
		out.Advanced = &adv
	}
	return out
}

func (p *Pipeline) record(ctx context.Context, e model.Event) Receipt { //nolint:gocritic // events are immutable values
	p.mu.Lock()
	if !p.online {
		r := p.enqueueLocked(ctx, e)
		p.mu.Unlock()
		return r
	}

	err := p.persistLocked(ctx, e)
	switch {
	case err == nil:
		p.mu.Unlock()
		return Receipt{Event: e, Success: true}
	case p.isSoftAck(err):
		p.mu.Unlock()
		p.logSoftAck(ctx, e, err)
		return Receipt{Event: e, Success: true, LocalOnly: true, Err: err}
	}

	p.setOfflineLocked()
	r := p.enqueueLocked(ctx, e)
	r.Err = err
	pending := p.pending.Len(ctx)
	p.mu.Unlock()

	p.log.Warn(ctx, "authoritative write failed, going offline",
		logger.String("kind", string(e.Kind)),
		logger.String("key", e.IdempotencyKey()),
		logger.Error(err),
	)
	p.announce(ctx, model.PipelineOffline{Reason: err.Error(), Pending: pending})
	return r
}

// enqueueLocked parks e. A full queue rejects the newest event.
func (p *Pipeline) enqueueLocked(ctx context.Context, e model.Event) Receipt { //nolint:gocritic // events are immutable values
	if !p.pending.Enqueue(ctx, e) {
		p.log.Error(ctx, "pending queue full, event not recorded",
			logger.String("kind", string(e.Kind)),
			logger.String("key", e.IdempotencyKey()),
			logger.Int("capacity", p.pending.Cap()),
		)
		return Receipt{Event: e, Offline: true, Err: ErrQueueFull}
	}
	return Receipt{Event: e, Offline: true, Queued: true}
}

func (p *Pipeline) audit(ctx context.Context, e model.Event) Receipt { //nolint:gocritic // events are immutable values
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online {
		return Receipt{Event: e, Offline: true, LocalOnly: true}
	}
	err := p.persistLocked(ctx, e)
	switch {
	case err == nil:
		return Receipt{Event: e, Success: true}
	case p.isSoftAck(err):
		p.logSoftAck(ctx, e, err)
		return Receipt{Event: e, Success: true, LocalOnly: true, Err: err}
	default:
		p.log.Warn(ctx, "audit write failed",
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
		return Receipt{Event: e, LocalOnly: true, Err: err}
	}
}

// persistLocked writes e unless its idempotency key was already recorded.
func (p *Pipeline) persistLocked(ctx context.Context, e model.Event) error { //nolint:gocritic // events are immutable values
	if p.store == nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, ErrNoStore)
	}
	key := e.IdempotencyKey()
	if p.seen.SeenAndRecord(ctx, key) {
		metrics.RecordEventDuplicate()
		p.log.Debug(ctx, "skipping already recorded event", logger.String("key", key))
		return nil
	}

	rec, err := storage.NewRecord(e)
	if err != nil {
		p.seen.Unrecord(ctx, key)
		return err
	}
	if rec.ActorID == "" {
		rec.ActorID = p.actorID
	}

	start := time.Now()
	err = p.store.Append(ctx, rec)
	metrics.RecordPersistLatency(float64(time.Since(start).Microseconds()) / 1000)

	switch {
	case err == nil:
		metrics.RecordEventPersisted(string(e.Kind))
		return nil
	case errors.Is(err, storage.ErrSchemaMissing):
		metrics.RecordPersistError("schema_missing")
		if !p.softAckMissingSchema {
			p.seen.Unrecord(ctx, key)
		}
		return err
	default:
		metrics.RecordPersistError("unavailable")
		p.seen.Unrecord(ctx, key)
		return err
	}
}

func (p *Pipeline) isSoftAck(err error) bool {
	return p.softAckMissingSchema && errors.Is(err, storage.ErrSchemaMissing)
}

func (p *Pipeline) logSoftAck(ctx context.Context, e model.Event, err error) { //nolint:gocritic // events are immutable values
	metrics.RecordSoftAck()
	p.log.Warn(ctx, "event table missing, acknowledging locally",
		logger.String("kind", string(e.Kind)),
		logger.String("key", e.IdempotencyKey()),
		logger.Error(err),
	)
}

// HealthCheck probes the backend. On an offline to online transition the
// pending queue is replayed in order; a failure part way puts the remainder
// back at the front and the pipeline goes offline again.
func (p *Pipeline) HealthCheck(ctx context.Context) bool {
	id, err := p.probe(ctx)
	reachable := err == nil && id.Reachable

	p.mu.Lock()
	p.lastCheck = p.now()
	if id.ActorID != "" {
		p.actorID = id.ActorID
	}
	wasOnline := p.online

	if !reachable {
		metrics.RecordHealthCheck("failed")
		if wasOnline {
			p.setOfflineLocked()
		}
		pending := p.pending.Len(ctx)
		p.mu.Unlock()
		if wasOnline {
			reason := "unreachable"
			if err != nil {
				reason = err.Error()
			}
			p.log.Warn(ctx, "health check failed, going offline", logger.String("reason", reason))
			p.announce(ctx, model.PipelineOffline{Reason: reason, Pending: pending})
		}
		return false
	}
	metrics.RecordHealthCheck("ok")

	if wasOnline && p.pending.Len(ctx) == 0 {
		p.mu.Unlock()
		return true
	}

	p.online = true
	flushed, flushErr := p.flushLocked(ctx)
	pending := p.pending.Len(ctx)
	if flushErr != nil {
		p.setOfflineLocked()
		p.mu.Unlock()
		p.log.Warn(ctx, "replay interrupted, going offline",
			logger.Int("flushed", flushed),
			logger.Int("pending", pending),
			logger.Error(flushErr),
		)
		if wasOnline {
			p.announce(ctx, model.PipelineOffline{Reason: flushErr.Error(), Pending: pending})
		}
		return false
	}
	metrics.UpdatePipelineOnline(true)
	p.mu.Unlock()

	if !wasOnline {
		p.log.Info(ctx, "pipeline online", logger.Int("flushed", flushed))
		p.announce(ctx, model.PipelineOnline{Flushed: flushed, Pending: pending})
	}
	return true
}

// flushLocked replays the queue. Returns the number of events handled.
func (p *Pipeline) flushLocked(ctx context.Context) (int, error) {
	events := p.pending.Drain(ctx)
	for i, e := range events {
		err := p.persistLocked(ctx, e)
		switch {
		case err == nil:
		case p.isSoftAck(err):
			p.logSoftAck(ctx, e, err)
		default:
			if dropped := p.pending.Requeue(ctx, events[i:]); dropped > 0 {
				p.log.Error(ctx, "pending queue overflow during requeue", logger.Int("dropped", dropped))
			}
			return i, err
		}
		metrics.RecordEventFlushed()
	}
	return len(events), nil
}

// MarkOffline records a connectivity-lost signal. No I/O is attempted.
func (p *Pipeline) MarkOffline(ctx context.Context, reason string) {
	p.mu.Lock()
	wasOnline := p.online
	p.setOfflineLocked()
	pending := p.pending.Len(ctx)
	p.mu.Unlock()

	if wasOnline {
		p.log.Info(ctx, "pipeline marked offline", logger.String("reason", reason))
		p.announce(ctx, model.PipelineOffline{Reason: reason, Pending: pending})
	}
}

func (p *Pipeline) setOfflineLocked() {
	p.online = false
	metrics.UpdatePipelineOnline(false)
}

func (p *Pipeline) probe(ctx context.Context) (Identity, error) {
	if p.prober == nil {
		return Identity{}, ErrNoStore
	}
	return p.prober.Probe(ctx)
}

// announce publishes a local pipeline notice. Must be called without mu held.
func (p *Pipeline) announce(ctx context.Context, payload model.Payload) {
	metrics.RecordEventEmitted(string(payload.Kind()))
	p.bus.Publish(ctx, model.NewEvent(payload, sourcePipeline, p.ActorID(), p.now()))
}

// IsOnline reports whether authoritative events are currently written through.
func (p *Pipeline) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Retract withdraws a queued event that its producer no longer stands behind.
// Events already written are not touched.
func (p *Pipeline) Retract(ctx context.Context, e model.Event) bool { //nolint:gocritic // events are immutable values
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending.Remove(ctx, e.IdempotencyKey()) {
		return false
	}
	p.log.Info(ctx, "queued event retracted",
		logger.String("kind", string(e.Kind)),
		logger.String("key", e.IdempotencyKey()),
	)
	return true
}

// Pending returns a copy of the queued events, oldest first.
func (p *Pipeline) Pending(ctx context.Context) []model.Event {
	return p.pending.Snapshot(ctx)
}

// LastHealthCheck returns when the backend was last probed.
func (p *Pipeline) LastHealthCheck() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCheck
}

// ActorID returns the actor stamped on new events.
func (p *Pipeline) ActorID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actorID
}

// Bus returns the bus the pipeline publishes on.
func (p *Pipeline) Bus() *bus.Bus { return p.bus }

// Stats returns a diagnostic snapshot.
func (p *Pipeline) Stats(ctx context.Context) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Online:          p.online,
		Pending:         p.pending.Len(ctx),
		PendingCapacity: p.pending.Cap(),
		LastHealthCheck: p.lastCheck,
		ActorID:         p.actorID,
		RecordedKeys:    p.seen.Size(),
	}
}
