package repository

import (
	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

// NewRatingRepository returns the ratings table oldest first.
func NewRatingRepository(db *gorm.DB) interfaces.Table[roster.Rating] {
	return &gormTable[roster.Rating]{
		db:    db,
		name:  "rating",
		order: "date, created_at",
	}
}
