package pipeline

import (
	"context"
	"fmt"
)

// StoreProber reports a fixed actor as reachable when the store answers a ping.
type StoreProber struct {
	Store   Store
	ActorID string
}

// Probe implements Prober.
func (s *StoreProber) Probe(ctx context.Context) (Identity, error) {
	if s.Store == nil {
		return Identity{ActorID: s.ActorID}, ErrNoStore
	}
	if err := s.Store.Ping(ctx); err != nil {
		return Identity{ActorID: s.ActorID}, fmt.Errorf("ping store: %w", err)
	}
	return Identity{ActorID: s.ActorID, Reachable: true}, nil
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Identity, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) (Identity, error) { return f(ctx) }
