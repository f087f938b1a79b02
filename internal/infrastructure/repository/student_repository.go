package repository

import (
	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

// NewStudentRepository returns the students table in insertion order,
// which the seating arrangement relies on for tie-breaking.
func NewStudentRepository(db *gorm.DB) interfaces.Table[roster.Student] {
	return &gormTable[roster.Student]{
		db:    db,
		name:  "student",
		order: "created_at, id",
	}
}
