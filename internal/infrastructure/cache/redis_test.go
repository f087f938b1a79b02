package cache

import (
	"testing"
	"time"

	"classroom-roster/internal/domain/roster"

	"github.com/go-redis/redis/v8"
)

func TestRedisSnapshotStore_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	store := NewRedisSnapshotStoreWithClient(client, "")
	if got := store.key(keyClasses); got != "roster:snapshot:classes" {
		t.Errorf("Expected default prefix, got %s", got)
	}

	store = NewRedisSnapshotStoreWithClient(client, "school1")
	if got := store.key(keyRatings); got != "school1:ratings" {
		t.Errorf("Expected custom prefix, got %s", got)
	}
}

func TestSnapshotEncoding_RoundTrip(t *testing.T) {
	class := roster.NewClass("5a", 2, 3)
	student := roster.NewStudent(class.ID, "Ada", "Adler")
	student.EntryDate = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	seat := roster.NewSeatingPosition(student.ID, class.ID, 1, 2)
	two := 2
	graded := roster.NewRating(student.ID, class.ID, &two)
	absent := roster.NewRating(student.ID, class.ID, nil)
	absent.IsAbsent = true

	savedAt := time.Date(2024, 10, 1, 8, 30, 15, 123456789, time.UTC)
	in := &roster.Snapshot{
		Classes:   []roster.Class{class},
		Students:  []roster.Student{student},
		Positions: []roster.SeatingPosition{seat},
		Ratings:   []roster.Rating{graded, absent},
		SavedAt:   savedAt,
	}

	values, err := encodeSnapshot(in, time.Now())
	if err != nil {
		t.Fatalf("encodeSnapshot() error = %v", err)
	}
	if len(values) != len(snapshotFields) {
		t.Fatalf("Expected %d values, got %d", len(snapshotFields), len(values))
	}

	reply := make([]any, len(values))
	for i, v := range values {
		reply[i] = v
	}
	out, err := decodeSnapshot(reply)
	if err != nil {
		t.Fatalf("decodeSnapshot() error = %v", err)
	}

	if !out.SavedAt.Equal(savedAt) {
		t.Errorf("Expected saved_at %v, got %v", savedAt, out.SavedAt)
	}
	if len(out.Classes) != 1 || out.Classes[0].ID != class.ID || out.Classes[0].Column != 3 {
		t.Errorf("Unexpected classes: %+v", out.Classes)
	}
	if !out.Classes[0].CreatedAt.Equal(class.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", class.CreatedAt, out.Classes[0].CreatedAt)
	}
	if len(out.Students) != 1 || !out.Students[0].EntryDate.Equal(student.EntryDate) {
		t.Errorf("Unexpected students: %+v", out.Students)
	}
	if len(out.Positions) != 1 || out.Positions[0].XPos != 1 || out.Positions[0].YPos != 2 {
		t.Errorf("Unexpected positions: %+v", out.Positions)
	}
	if len(out.Ratings) != 2 {
		t.Fatalf("Expected 2 ratings, got %d", len(out.Ratings))
	}
	if out.Ratings[0].Value == nil || *out.Ratings[0].Value != 2 {
		t.Errorf("Expected rating value 2, got %v", out.Ratings[0].Value)
	}
	if out.Ratings[1].Value != nil || !out.Ratings[1].IsAbsent {
		t.Errorf("Expected absent rating without value, got %+v", out.Ratings[1])
	}
}

func TestSnapshotEncoding_ZeroSavedAtUsesNow(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	values, err := encodeSnapshot(&roster.Snapshot{}, now)
	if err != nil {
		t.Fatalf("encodeSnapshot() error = %v", err)
	}
	if got := values[len(values)-1]; got != now.Format(time.RFC3339Nano) {
		t.Errorf("Expected saved_at %s, got %s", now.Format(time.RFC3339Nano), got)
	}
}

func TestSnapshotEncoding_MissingKeys(t *testing.T) {
	snap, err := decodeSnapshot([]any{nil, nil, nil, nil, nil})
	if err != nil || snap != nil {
		t.Errorf("Expected nil snapshot and nil error, got %+v, %v", snap, err)
	}

	// Collections may be absent as long as saved_at is present.
	snap, err = decodeSnapshot([]any{nil, nil, nil, nil, "2024-10-01T08:30:00Z"})
	if err != nil {
		t.Fatalf("decodeSnapshot() error = %v", err)
	}
	if snap == nil || len(snap.Classes) != 0 {
		t.Errorf("Expected empty snapshot, got %+v", snap)
	}
}

func TestSnapshotEncoding_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		vals []any
	}{
		{"bad json", []any{"{not json", "[]", "[]", "[]", "2024-10-01T08:30:00Z"}},
		{"bad saved_at", []any{"[]", "[]", "[]", "[]", "yesterday"}},
		{"short reply", []any{"[]", "2024-10-01T08:30:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeSnapshot(tt.vals); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
