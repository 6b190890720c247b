// Package bus is the in-process publish/subscribe hub for domain events.
//
// Delivery is synchronous on the publisher's goroutine and follows
// registration order. A failing handler is logged and skipped; it never
// reaches the publisher or the remaining handlers.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

const defaultHistorySize = 100

// Handler receives a delivered event.
type Handler func(ctx context.Context, e model.Event) error

type subscription struct {
	id      uint64
	kind    model.Kind // empty for wildcard subscribers
	handler Handler
}

// Bus fans events out to subscribers and keeps a bounded history.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	history []model.Event
	head    int
	count   int

	historySize int
	log         logger.Logger
	now         func() time.Time
	actorID     string
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		historySize: defaultHistorySize,
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.historySize < 1 {
		b.historySize = 1
	}
	b.history = make([]model.Event, b.historySize)
	return b
}

// Subscribe registers h for events of kind k and returns a func that removes it.
func (b *Bus) Subscribe(k model.Kind, h Handler) (unsubscribe func()) {
	return b.add(k, h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(k model.Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: k, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit wraps p in an event stamped now and publishes it.
func (b *Bus) Emit(ctx context.Context, p model.Payload, source string) model.Event {
	e := model.NewEvent(p, source, b.actorID, b.now())
	b.Publish(ctx, e)
	return e
}

// Publish records e in the history and delivers it to the current subscribers.
// Handlers registered or removed during delivery take effect on the next event.
func (b *Bus) Publish(ctx context.Context, e model.Event) {
	b.mu.Lock()
	b.history[b.head] = e
	b.head = (b.head + 1) % len(b.history)
	if b.count < len(b.history) {
		b.count++
	}
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == e.Kind {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		b.deliver(ctx, s, e)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSubscriberError(string(e.Kind))
			b.log.Error(ctx, "subscriber panicked",
				logger.String("kind", string(e.Kind)),
				logger.Any("subscriber", s.id),
				logger.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := s.handler(ctx, e); err != nil {
		metrics.RecordSubscriberError(string(e.Kind))
		b.log.Warn(ctx, "subscriber failed",
			logger.String("kind", string(e.Kind)),
			logger.Any("subscriber", s.id),
			logger.Error(err),
		)
	}
}

// History returns up to limit of the most recent events, oldest first.
// A limit <= 0 returns the whole buffer.
func (b *Bus) History(limit int) []model.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Event, n)
	start := (b.head - n + len(b.history)) % len(b.history)
	for i := 0; i < n; i++ {
		out[i] = b.history[(start+i)%len(b.history)]
	}
	return out
}

// SubscriberCount returns the number of registered handlers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
