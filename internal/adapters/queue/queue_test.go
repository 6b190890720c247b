package queue

import (
	"context"
	"testing"

	"github.com/okian/drillcore/internal/domain/model"
)

func ev(id string) model.Event {
	return model.Event{ID: id, Kind: model.KindAnswerSubmitted}
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	for _, id := range []string{"e1", "e2"} {
		if !q.Enqueue(ctx, ev(id)) {
			t.Fatalf("expected enqueue of %s to succeed", id)
		}
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}

	got := ids(q.Drain(ctx))
	if len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Errorf("expected FIFO drain [e1 e2], got %v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected empty queue after drain, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	q.Enqueue(ctx, ev("e1"))
	q.Enqueue(ctx, ev("e2"))
	if q.Enqueue(ctx, ev("e3")) {
		t.Error("expected enqueue to fail when full")
	}
	got := ids(q.Snapshot(ctx))
	if len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Errorf("queued events must not be displaced, got %v", got)
	}
	if q.Cap() != 2 {
		t.Errorf("expected cap 2, got %d", q.Cap())
	}
}

func TestInMemoryQueue_RequeueFront(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, ev("e1"))
	q.Enqueue(ctx, ev("e2"))
	drained := q.Drain(ctx)
	q.Enqueue(ctx, ev("e3"))

	if dropped := q.Requeue(ctx, drained); dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
	got := ids(q.Snapshot(ctx))
	want := []string{"e1", "e2", "e3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestInMemoryQueue_RequeueOverflowDropsTail(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	q.Enqueue(ctx, ev("late"))
	dropped := q.Requeue(ctx, []model.Event{ev("e1"), ev("e2")})
	if dropped != 1 {
		t.Errorf("expected one drop, got %d", dropped)
	}
	got := ids(q.Snapshot(ctx))
	if len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Errorf("expected oldest events kept, got %v", got)
	}
}

func TestInMemoryQueue_Remove(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()

	q.Enqueue(ctx, ev("e1"))
	q.Enqueue(ctx, ev("e2"))
	q.Enqueue(ctx, ev("e3"))
	if !q.Remove(ctx, "e2") {
		t.Fatal("expected e2 to be removed")
	}
	if q.Remove(ctx, "e2") {
		t.Error("expected second removal to report nothing removed")
	}
	got := ids(q.Snapshot(ctx))
	if len(got) != 2 || got[0] != "e1" || got[1] != "e3" {
		t.Errorf("expected [e1 e3], got %v", got)
	}
	if !q.Enqueue(ctx, ev("e4")) {
		t.Error("expected freed slot to accept a new event")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, ev("e1"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected closed")
	}
	if q.Enqueue(ctx, ev("e2")) {
		t.Error("expected enqueue after close to fail")
	}
	if got := q.Drain(ctx); len(got) != 1 {
		t.Errorf("expected queued event to remain drainable, got %d", len(got))
	}
}
