package interfaces

import (
	"context"

	"classroom-roster/internal/domain/roster"

	"github.com/google/uuid"
)

// Table is the persistent engine's view of one entity type.
type Table[T any] interface {
	FetchAll(ctx context.Context) ([]T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Engine is the durable store behind the in-memory working set.
// Transaction runs fn against a transactional Engine; any error rolls back.
type Engine interface {
	Classes() Table[roster.Class]
	Students() Table[roster.Student]
	Positions() Table[roster.SeatingPosition]
	Ratings() Table[roster.Rating]
	Transaction(ctx context.Context, fn func(tx Engine) error) error
	Health(ctx context.Context) error
}
