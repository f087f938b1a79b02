package interfaces

import (
	"context"

	"classroom-roster/internal/domain/roster"
)

// SnapshotStore is the non-transactional fallback used only while the
// engine is failing. LoadSnapshot returns nil, nil when nothing was saved.
// A stored snapshot holds writes the engine has not seen yet; Clear drops
// it once they were replayed.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *roster.Snapshot) error
	LoadSnapshot(ctx context.Context) (*roster.Snapshot, error)
	Clear(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
