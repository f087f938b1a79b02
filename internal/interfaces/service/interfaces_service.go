package service

import (
	"context"
	"time"

	"classroom-roster/internal/domain/roster"

	"github.com/google/uuid"
)

// Backend names the store that captured the most recent write.
type Backend string

const (
	BackendEngine   Backend = "engine"
	BackendSnapshot Backend = "snapshot"
)

// BackendStatus tells callers whether writes are currently durable in the
// engine or only in the fallback snapshot.
type BackendStatus struct {
	Active         Backend    `json:"active"`
	Degraded       bool       `json:"degraded"`
	FallbackCount  int        `json:"fallback_count"`
	LastError      string     `json:"last_error,omitempty"`
	LastFallbackAt *time.Time `json:"last_fallback_at,omitempty"`
}

// BatchResult is the aggregate outcome of a batch.
type BatchResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}

type ClassStore interface {
	GetClass(id uuid.UUID) (roster.Class, bool)
	Classes() []roster.Class
	ActiveClasses() []roster.Class
	ClassAt(row, column int) (roster.Class, bool)
	IsClassNameUnique(name string, excludeID uuid.UUID) bool
	IsPositionAvailable(row, column int, excludeID uuid.UUID) bool
	AddClass(ctx context.Context, c roster.Class) (roster.Class, error)
	UpdateClass(ctx context.Context, c roster.Class) (roster.Class, error)
	ArchiveClass(ctx context.Context, id uuid.UUID) error
	DeleteClass(ctx context.Context, id uuid.UUID) error
}

type StudentStore interface {
	GetStudent(id uuid.UUID) (roster.Student, bool)
	StudentsForClass(classID uuid.UUID, includeArchived bool) []roster.Student
	StudentCountForClass(classID uuid.UUID) int
	IsStudentNameUnique(classID uuid.UUID, firstName, lastName string, excludeID uuid.UUID) bool
	AddStudent(ctx context.Context, st roster.Student) (roster.Student, error)
	UpdateStudent(ctx context.Context, st roster.Student) (roster.Student, error)
	ArchiveStudent(ctx context.Context, id uuid.UUID) error
	DeleteStudent(ctx context.Context, id uuid.UUID) error
	MoveStudentToClass(ctx context.Context, studentID, targetClassID uuid.UUID) (roster.Student, error)
}

type SeatingStore interface {
	GetPosition(id uuid.UUID) (roster.SeatingPosition, bool)
	PositionFor(studentID, classID uuid.UUID) (roster.SeatingPosition, bool)
	PositionsForClass(classID uuid.UUID) []roster.SeatingPosition
	SavePosition(ctx context.Context, p roster.SeatingPosition) (roster.SeatingPosition, error)
	DeletePosition(ctx context.Context, id uuid.UUID) error
	ArrangeInGrid(ctx context.Context, classID uuid.UUID, columns int) ([]roster.SeatingPosition, error)
}

type RatingStore interface {
	GetRating(id uuid.UUID) (roster.Rating, bool)
	RatingsForStudent(studentID uuid.UUID, includeArchived bool) []roster.Rating
	RatingsForClass(classID uuid.UUID, includeArchived bool) []roster.Rating
	AddRating(ctx context.Context, r roster.Rating) (roster.Rating, error)
	UpdateRating(ctx context.Context, r roster.Rating) (roster.Rating, error)
	ArchiveRating(ctx context.Context, id uuid.UUID) error
	DeleteRating(ctx context.Context, id uuid.UUID) error
}

// RosterStore is everything the HTTP layer needs from the data store.
type RosterStore interface {
	ClassStore
	StudentStore
	SeatingStore
	RatingStore

	MaxStudentsPerClass() int
	Status() BackendStatus
	LoadAll(ctx context.Context) error
}
