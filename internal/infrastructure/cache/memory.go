package cache

import (
	"context"
	"sync"
	"time"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
)

// MemorySnapshotStore holds the snapshot in process. It is used when no
// redis is configured and in tests.
type MemorySnapshotStore struct {
	mu       sync.RWMutex
	snapshot *roster.Snapshot
	saves    int
	err      error
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// FailWith makes every call return err; nil restores normal operation.
func (m *MemorySnapshotStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves reports how many snapshots were written successfully.
func (m *MemorySnapshotStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemorySnapshotStore) SaveSnapshot(ctx context.Context, snapshot *roster.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	cp := copySnapshot(snapshot)
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now().UTC()
	}
	m.snapshot = cp
	m.saves++
	return nil
}

func (m *MemorySnapshotStore) LoadSnapshot(ctx context.Context) (*roster.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.snapshot == nil {
		return nil, nil
	}
	return copySnapshot(m.snapshot), nil
}

func (m *MemorySnapshotStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snapshot = nil
	return nil
}

func (m *MemorySnapshotStore) Health(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *MemorySnapshotStore) Close() error {
	return nil
}

func copySnapshot(s *roster.Snapshot) *roster.Snapshot {
	return &roster.Snapshot{
		Classes:   append([]roster.Class(nil), s.Classes...),
		Students:  append([]roster.Student(nil), s.Students...),
		Positions: append([]roster.SeatingPosition(nil), s.Positions...),
		Ratings:   append([]roster.Rating(nil), s.Ratings...),
		SavedAt:   s.SavedAt,
	}
}

var _ interfaces.SnapshotStore = (*MemorySnapshotStore)(nil)
