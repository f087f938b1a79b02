package repository

import (
	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

// NewClassRepository returns the classes table ordered by grid cell.
func NewClassRepository(db *gorm.DB) interfaces.Table[roster.Class] {
	return &gormTable[roster.Class]{
		db:    db,
		name:  "class",
		order: "grid_row, grid_column, created_at",
	}
}
