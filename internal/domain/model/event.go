// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names an event. The set is closed; every Kind has exactly one payload type.
type Kind string

const (
	KindRunStarted      Kind = "RUN_STARTED"
	KindQuestionShown   Kind = "QUESTION_SHOWN"
	KindAnswerSubmitted Kind = "ANSWER_SUBMITTED"
	KindRunCompleted    Kind = "RUN_COMPLETED"
	KindLevelAdvanced   Kind = "LEVEL_ADVANCED"
	KindRunAborted      Kind = "RUN_ABORTED"
	KindCelebration     Kind = "CELEBRATION"
	KindLeakDetected    Kind = "LEAK_DETECTED"
	KindDailyRotation   Kind = "DAILY_ROTATION"
	KindPipelineOnline  Kind = "PIPELINE_ONLINE"
	KindPipelineOffline Kind = "PIPELINE_OFFLINE"
)

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindRunStarted, KindQuestionShown, KindAnswerSubmitted, KindRunCompleted,
		KindLevelAdvanced, KindRunAborted, KindCelebration, KindLeakDetected,
		KindDailyRotation, KindPipelineOnline, KindPipelineOffline,
	}
}

// IsAuthoritative reports whether events of kind k must be durably recorded
// before the progress they carry counts.
func IsAuthoritative(k Kind) bool {
	switch k {
	case KindRunStarted, KindAnswerSubmitted, KindRunCompleted, KindLevelAdvanced:
		return true
	default:
		return false
	}
}

// IsAudit reports whether kind k is persisted best-effort without queuing.
func IsAudit(k Kind) bool {
	return k == KindRunAborted || k == KindDailyRotation
}

// Payload is implemented by every typed event body.
type Payload interface {
	Kind() Kind
}

// Event is an immutable envelope around a typed payload.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	ActorID   string    `json:"actor_id,omitempty"`
	Mode      Mode      `json:"mode"`
}

// NewEvent wraps p in an envelope with a fresh id. The mode is taken from
// the payload when it carries one, Standard otherwise.
func NewEvent(p Payload, source, actorID string, ts time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      p.Kind(),
		Payload:   p,
		Timestamp: ts,
		Source:    source,
		ActorID:   actorID,
		Mode:      ModeOf(p),
	}
}

// Authoritative reports whether e must be persisted before it is considered recorded.
// Practice events never are.
func (e Event) Authoritative() bool {
	return IsAuthoritative(e.Kind) && e.Mode != ModePractice
}

// IdempotencyKey identifies e across replays. Run events are keyed by
// run, kind and question index; everything else by event id.
func (e Event) IdempotencyKey() string {
	if k, ok := e.Payload.(keyed); ok {
		return k.idempotencyKey()
	}
	return e.ID
}

type keyed interface {
	idempotencyKey() string
}

type moded interface {
	EventMode() Mode
}

// ModeOf returns the mode carried by p, or ModeStandard.
func ModeOf(p Payload) Mode {
	if m, ok := p.(moded); ok {
		return m.EventMode()
	}
	return ModeStandard
}

func runKey(runID string, k Kind, index int) string {
	if index < 0 {
		return fmt.Sprintf("%s:%s", runID, k)
	}
	return fmt.Sprintf("%s:%s:%d", runID, k, index)
}
