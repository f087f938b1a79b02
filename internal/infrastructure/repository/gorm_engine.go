package repository

import (
	"context"
	"fmt"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ interfaces.Engine = (*GormEngine)(nil)

// GormEngine is the postgres-backed persistent engine.
type GormEngine struct {
	db *gorm.DB
}

// NewGormEngine wraps an open gorm connection.
func NewGormEngine(db *gorm.DB) *GormEngine {
	return &GormEngine{db: db}
}

func (e *GormEngine) Classes() interfaces.Table[roster.Class] {
	return NewClassRepository(e.db)
}

func (e *GormEngine) Students() interfaces.Table[roster.Student] {
	return NewStudentRepository(e.db)
}

func (e *GormEngine) Positions() interfaces.Table[roster.SeatingPosition] {
	return NewSeatingRepository(e.db)
}

func (e *GormEngine) Ratings() interfaces.Table[roster.Rating] {
	return NewRatingRepository(e.db)
}

// Transaction runs fn inside a database transaction. Returning an error
// from fn rolls every write back.
func (e *GormEngine) Transaction(ctx context.Context, fn func(tx interfaces.Engine) error) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormEngine{db: tx})
	})
}

func (e *GormEngine) Health(ctx context.Context) error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// gormTable implements interfaces.Table for one model type.
type gormTable[T any] struct {
	db    *gorm.DB
	name  string
	order string
}

func (t *gormTable[T]) FetchAll(ctx context.Context) ([]T, error) {
	var rows []T
	query := t.db.WithContext(ctx)
	if t.order != "" {
		query = query.Order(t.order)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", t.name, err)
	}
	return rows, nil
}

// Save inserts or fully updates the row with the entity's primary key.
func (t *gormTable[T]) Save(ctx context.Context, entity T) error {
	if err := t.db.WithContext(ctx).Save(&entity).Error; err != nil {
		return fmt.Errorf("failed to save %s: %w", t.name, err)
	}
	return nil
}

func (t *gormTable[T]) Delete(ctx context.Context, id uuid.UUID) error {
	var model T
	if err := t.db.WithContext(ctx).Delete(&model, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", t.name, id, err)
	}
	return nil
}
