// Package storage defines the durable event record and the error classes
// storage adapters map their driver errors into.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/drillcore/internal/domain/model"
)

// Record is one append-only row of the durable event log.
type Record struct {
	EventID        string
	ActorID        string
	Kind           model.Kind
	Mode           model.Mode
	IdempotencyKey string
	Payload        json.RawMessage
	OccurredAt     time.Time
	// RecordedAt is assigned by the store; zero on write.
	RecordedAt time.Time
}

// NewRecord encodes e for storage.
func NewRecord(e model.Event) (Record, error) { //nolint:gocritic // events are immutable values
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s payload: %w", e.Kind, err)
	}
	return Record{
		EventID:        e.ID,
		ActorID:        e.ActorID,
		Kind:           e.Kind,
		Mode:           e.Mode,
		IdempotencyKey: e.IdempotencyKey(),
		Payload:        payload,
		OccurredAt:     e.Timestamp.UTC(),
	}, nil
}
