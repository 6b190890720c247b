// Package memstore is an in-memory event store and rotation cache used by
// tests, the simulator and the memory store driver.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/adapters/storage"
)

// Store keeps records in insertion order. Failures can be injected to
// exercise the pipeline's offline paths.
type Store struct {
	mu      sync.Mutex
	records []storage.Record
	keys    map[string]struct{}
	failure error
	now     func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		keys: make(map[string]struct{}),
		now:  time.Now,
	}
}

// Append stores r once per idempotency key.
func (s *Store) Append(ctx context.Context, r storage.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if _, dup := s.keys[r.IdempotencyKey]; dup && r.IdempotencyKey != "" {
		return nil
	}
	r.RecordedAt = s.now().UTC()
	s.records = append(s.records, r)
	s.keys[r.IdempotencyKey] = struct{}{}
	return nil
}

// Ping fails with the injected error when it signals unavailability.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil && !errors.Is(s.failure, storage.ErrSchemaMissing) {
		return s.failure
	}
	return nil
}

// Records returns a copy of everything stored, oldest first.
func (s *Store) Records() []storage.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SetAvailable toggles a simulated outage.
func (s *Store) SetAvailable(ok bool) {
	if ok {
		s.Fail(nil)
		return
	}
	s.Fail(storage.ErrUnavailable)
}

// SetSchemaMissing simulates a backend without the event table.
func (s *Store) SetSchemaMissing(missing bool) {
	if missing {
		s.Fail(fmt.Errorf("%w: events table", storage.ErrSchemaMissing))
		return
	}
	s.Fail(nil)
}

// Fail makes every Append return err until cleared with nil.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Close implements io.Closer.
func (s *Store) Close() error { return nil }
