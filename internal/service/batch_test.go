package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"classroom-roster/internal/domain/roster"

	"github.com/google/uuid"
)

func TestBatchArchiveWithMissingItem(t *testing.T) {
	f := newFixture(t)
	c := f.addClass(t, "5a", 1, 1)
	x := f.addStudent(t, c.ID, "Xaver", "X")
	z := f.addStudent(t, c.ID, "Zoe", "Z")
	y := uuid.New()

	orchestrator := NewBatchOrchestrator(f.store, f.notifier, nil)

	var calls atomic.Int32
	var final BatchResult
	batch := orchestrator.ArchiveStudents(context.Background(), []uuid.UUID{x.ID, y, z.ID}, func(r BatchResult) {
		calls.Add(1)
		final = r
	})

	var events []roster.ChangeEvent
	for e := range batch.Events() {
		events = append(events, e)
	}
	result := batch.Wait()

	if result.SuccessCount != 2 || result.FailureCount != 1 {
		t.Errorf("result = %+v, want 2 succeeded, 1 failed", result)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if calls.Load() != 1 {
		t.Errorf("completion callback fired %d times, want 1", calls.Load())
	}
	if final != result {
		t.Errorf("callback result %+v != %+v", final, result)
	}

	for _, e := range events {
		if e.Kind != roster.ChangeArchived {
			t.Errorf("event kind = %s", e.Kind)
		}
		if e.ID == y && (e.Success || e.DisplayName != "") {
			t.Errorf("missing item event = %+v", e)
		}
		if e.ID != y && !e.Success {
			t.Errorf("event for %s failed", e.ID)
		}
	}
	if got := len(f.store.StudentsForClass(c.ID, false)); got != 0 {
		t.Errorf("active students = %d, want 0", got)
	}
	if f.notifier.count(roster.EntityStudent, roster.ChangeRefreshed) != 1 {
		t.Error("refresh signal not published")
	}
}

func TestBatchOperationNotCalledForMissingItems(t *testing.T) {
	f := newFixture(t)
	orchestrator := NewBatchOrchestrator(f.store, nil, nil)

	var invoked atomic.Int32
	result := orchestrator.Run(context.Background(), BatchRequest{
		Entity: roster.EntityClass,
		Kind:   roster.ChangeDeleted,
		IDs:    []uuid.UUID{uuid.New(), uuid.New()},
		Operation: func(context.Context, uuid.UUID) bool {
			invoked.Add(1)
			return true
		},
	})

	if result.FailureCount != 2 || result.SuccessCount != 0 {
		t.Errorf("result = %+v", result)
	}
	if invoked.Load() != 0 {
		t.Errorf("operation invoked %d times", invoked.Load())
	}
}

func TestBatchEmptyCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	orchestrator := NewBatchOrchestrator(f.store, nil, nil)

	done := make(chan BatchResult, 1)
	batch := orchestrator.DeleteClasses(context.Background(), nil, func(r BatchResult) { done <- r })

	select {
	case r := <-done:
		if r != (BatchResult{}) {
			t.Errorf("result = %+v, want zero", r)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback not fired for an empty batch")
	}
	if _, open := <-batch.Events(); open {
		t.Error("events channel should be closed")
	}
}

func TestBatchMoveAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addClass(t, "5a", 1, 1)
	b := f.addClass(t, "5b", 1, 2)
	var ids []uuid.UUID
	for _, name := range []string{"Adler", "Bauer", "Conrad", "Dietz"} {
		ids = append(ids, f.addStudent(t, a.ID, "Kid", name).ID)
	}

	orchestrator := NewBatchOrchestrator(f.store, nil, nil)
	moved := orchestrator.MoveStudents(ctx, ids, b.ID, nil).Wait()
	if moved.SuccessCount != 4 {
		t.Fatalf("move result = %+v", moved)
	}
	if got := f.store.StudentCountForClass(b.ID); got != 4 {
		t.Errorf("students in target = %d, want 4", got)
	}

	deleted := orchestrator.DeleteClasses(ctx, []uuid.UUID{b.ID}, nil).Wait()
	if deleted.SuccessCount != 1 {
		t.Fatalf("delete result = %+v", deleted)
	}
	if got := len(f.store.Students()); got != 0 {
		t.Errorf("students left = %d, want 0", got)
	}
}
