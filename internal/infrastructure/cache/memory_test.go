package cache

import (
	"context"
	"errors"
	"testing"

	"classroom-roster/internal/domain/roster"
)

func TestMemorySnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()

	got, err := store.LoadSnapshot(ctx)
	if err != nil || got != nil {
		t.Fatalf("Expected empty store, got %+v, %v", got, err)
	}

	class := roster.NewClass("5a", 1, 1)
	snap := &roster.Snapshot{Classes: []roster.Class{class}}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Mutating the caller's slice must not leak into the stored copy.
	snap.Classes[0].Name = "changed"

	got, err = store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got.Classes) != 1 || got.Classes[0].Name != "5a" {
		t.Errorf("Unexpected snapshot %+v", got.Classes)
	}
	if got.SavedAt.IsZero() {
		t.Error("Expected SavedAt to be set")
	}
	if store.Saves() != 1 {
		t.Errorf("Expected 1 save, got %d", store.Saves())
	}
}

func TestMemorySnapshotStore_FailWith(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()
	boom := errors.New("unavailable")
	store.FailWith(boom)

	if err := store.SaveSnapshot(ctx, &roster.Snapshot{}); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}
	if err := store.Health(ctx); !errors.Is(err, boom) {
		t.Errorf("Expected injected health error, got %v", err)
	}

	store.FailWith(nil)
	if err := store.SaveSnapshot(ctx, &roster.Snapshot{}); err != nil {
		t.Errorf("Expected recovery, got %v", err)
	}
}

func TestMemorySnapshotStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()
	if err := store.SaveSnapshot(ctx, &roster.Snapshot{Classes: []roster.Class{roster.NewClass("5a", 1, 1)}}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	boom := errors.New("unavailable")
	store.FailWith(boom)
	if err := store.Clear(ctx); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}
	store.FailWith(nil)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, err := store.LoadSnapshot(ctx)
	if err != nil || got != nil {
		t.Errorf("Expected empty store after Clear, got %+v, %v", got, err)
	}
}
