// Package queue holds authoritative events that could not be recorded yet.
//
// The queue is a bounded FIFO. When it is full new events are rejected;
// already queued events are never dropped, so replay order stays causal.
package queue

import (
	"context"
	"sync"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/metrics"
)

const defaultCapacity = 1_000

// Queue is the pending-event buffer owned by the pipeline.
type Queue interface {
	// Enqueue appends e. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, e model.Event) bool

	// Drain removes and returns every queued event in FIFO order.
	Drain(ctx context.Context) []model.Event

	// Requeue puts events back at the front, ahead of anything queued since Drain.
	// Events beyond capacity are rejected from the tail and counted as dropped.
	Requeue(ctx context.Context, events []model.Event) (dropped int)

	// Remove deletes the queued event with the given idempotency key.
	Remove(ctx context.Context, key string) bool

	// Snapshot returns a copy of the queued events without removing them.
	Snapshot(ctx context.Context) []model.Event

	Len(ctx context.Context) int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a slice guarded by a mutex.
type InMemoryQueue struct {
	mu       sync.Mutex
	events   []model.Event
	capacity int
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make([]model.Event, 0, q.capacity)
	metrics.UpdatePendingEvents(0)
	return q
}

// Enqueue adds an event to the tail of the queue.
func (q *InMemoryQueue) Enqueue(_ context.Context, e model.Event) bool { //nolint:gocritic // events are immutable values
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.events) >= q.capacity {
		metrics.RecordEventDropped()
		return false
	}
	q.events = append(q.events, e)
	metrics.RecordEventQueued()
	metrics.UpdatePendingEvents(len(q.events))
	return true
}

// Drain empties the queue.
func (q *InMemoryQueue) Drain(_ context.Context) []model.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.events
	q.events = make([]model.Event, 0, q.capacity)
	metrics.UpdatePendingEvents(0)
	return out
}

// Requeue restores events ahead of the current contents.
func (q *InMemoryQueue) Requeue(_ context.Context, events []model.Event) int {
	if len(events) == 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]model.Event, 0, len(events)+len(q.events))
	merged = append(merged, events...)
	merged = append(merged, q.events...)
	dropped := 0
	if len(merged) > q.capacity {
		dropped = len(merged) - q.capacity
		merged = merged[:q.capacity]
	}
	for i := 0; i < dropped; i++ {
		metrics.RecordEventDropped()
	}
	q.events = merged
	metrics.UpdatePendingEvents(len(q.events))
	return dropped
}

// Remove drops the first event keyed key, keeping the order of the rest.
func (q *InMemoryQueue) Remove(_ context.Context, key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.events {
		if e.IdempotencyKey() == key {
			q.events = append(q.events[:i], q.events[i+1:]...)
			metrics.UpdatePendingEvents(len(q.events))
			return true
		}
	}
	return false
}

// Snapshot copies the queued events.
func (q *InMemoryQueue) Snapshot(_ context.Context) []model.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Event, len(q.events))
	copy(out, q.events)
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Cap returns the configured capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close rejects further enqueues. Queued events stay drainable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
