package repository

import (
	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

func NewSeatingRepository(db *gorm.DB) interfaces.Table[roster.SeatingPosition] {
	return &gormTable[roster.SeatingPosition]{
		db:    db,
		name:  "seating position",
		order: "class_id, y_pos, x_pos",
	}
}
