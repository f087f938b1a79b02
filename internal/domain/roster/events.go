package roster

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind keys event subscriptions.
type EntityKind string

const (
	EntityClass   EntityKind = "class"
	EntityStudent EntityKind = "student"
	EntitySeating EntityKind = "seating_position"
	EntityRating  EntityKind = "rating"
	EntityBackend EntityKind = "backend"
)

// ChangeKind describes what happened to an entity.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeArchived ChangeKind = "archived"
	ChangeMoved    ChangeKind = "moved"
	ChangeArranged ChangeKind = "arranged"

	// ChangeRefreshed follows the last item of a batch so views can reload.
	ChangeRefreshed ChangeKind = "refreshed"

	// Backend transitions.
	ChangeDegraded ChangeKind = "degraded"
	ChangeRestored ChangeKind = "restored"
)

// ChangeEvent is published for every store mutation and every processed
// batch item. Success is false only for failed batch items.
type ChangeEvent struct {
	Entity      EntityKind `json:"entity"`
	Kind        ChangeKind `json:"kind"`
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	Success     bool       `json:"success"`
	At          time.Time  `json:"at"`
}

// Snapshot is the whole working set as written to the fallback store.
type Snapshot struct {
	Classes   []Class           `json:"classes"`
	Students  []Student         `json:"students"`
	Positions []SeatingPosition `json:"positions"`
	Ratings   []Rating          `json:"ratings"`
	SavedAt   time.Time         `json:"saved_at"`
}
