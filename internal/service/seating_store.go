package service

import (
	"context"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
)

func savePosition(p roster.SeatingPosition, kind roster.ChangeKind, name string) change {
	return change{
		entity: roster.EntitySeating,
		kind:   kind,
		id:     p.ID,
		name:   name,
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Positions().Save(ctx, p)
		},
		apply: func(st *state) { st.positions.put(p) },
	}
}

func deletePosition(p roster.SeatingPosition) change {
	return change{
		entity: roster.EntitySeating,
		kind:   roster.ChangeDeleted,
		id:     p.ID,
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Positions().Delete(ctx, p.ID)
		},
		apply: func(st *state) { st.positions.remove(p.ID) },
	}
}

// GetPosition returns the seating position with id.
func (s *DataStore) GetPosition(id uuid.UUID) (roster.SeatingPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.positions.get(id)
}

// PositionFor returns the seating position of a student in a class.
func (s *DataStore) PositionFor(studentID, classID uuid.UUID) (roster.SeatingPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionForLocked(studentID, classID)
}

func (s *DataStore) positionForLocked(studentID, classID uuid.UUID) (roster.SeatingPosition, bool) {
	for _, p := range s.state.positions.items {
		if p.StudentID == studentID && p.ClassID == classID {
			return p, true
		}
	}
	return roster.SeatingPosition{}, false
}

// PositionsForClass lists the seating chart of a class.
func (s *DataStore) PositionsForClass(classID uuid.UUID) []roster.SeatingPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.positions.filter(func(p roster.SeatingPosition) bool { return p.ClassID == classID })
}

// SavePosition stores a seating position. A student has at most one
// position per class, so an existing position for the same pair is
// overwritten and keeps its id.
func (s *DataStore) SavePosition(ctx context.Context, p roster.SeatingPosition) (roster.SeatingPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := p.Validate(); err != nil {
		return roster.SeatingPosition{}, err
	}
	st, ok := s.state.students.get(p.StudentID)
	if !ok {
		return roster.SeatingPosition{}, roster.NewValidationError("student_id", "student %s does not exist", p.StudentID)
	}
	if _, ok := s.state.classes.get(p.ClassID); !ok {
		return roster.SeatingPosition{}, roster.NewValidationError("class_id", "class %s does not exist", p.ClassID)
	}

	kind := roster.ChangeCreated
	if existing, found := s.positionForLocked(p.StudentID, p.ClassID); found {
		p.ID = existing.ID
		kind = roster.ChangeUpdated
	} else if _, found := s.state.positions.get(p.ID); found {
		kind = roster.ChangeUpdated
	}
	p.LastUpdated = s.now()

	if err := s.commit(ctx, "save", savePosition(p, kind, st.FullName())); err != nil {
		return roster.SeatingPosition{}, err
	}
	return p, nil
}

// DeletePosition removes one seating position.
func (s *DataStore) DeletePosition(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.positions.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntitySeating, ID: id.String()}
	}
	return s.commit(ctx, "delete", deletePosition(p))
}

// ArrangeInGrid seats the active students of a class row by row in
// alphabetical order, columns cells per row. Hand-placed positions are
// overwritten. Positions already at their computed cell are not written
// again, so repeating the call with the same students is a no-op.
func (s *DataStore) ArrangeInGrid(ctx context.Context, classID uuid.UUID, columns int) ([]roster.SeatingPosition, error) {
	if columns < 1 {
		return nil, roster.NewValidationError("columns", "columns must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.classes.get(classID); !ok {
		return nil, &roster.NotFoundError{Entity: roster.EntityClass, ID: classID.String()}
	}

	students := s.studentsForClassLocked(classID, false)
	names := make(map[uuid.UUID]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName()
	}

	now := s.now()
	result := make([]roster.SeatingPosition, 0, len(students))
	changes := make([]change, 0, len(students))
	for _, cell := range roster.ArrangeGrid(students, columns) {
		p, found := s.positionForLocked(cell.StudentID, classID)
		if found && p.XPos == cell.X && p.YPos == cell.Y && !p.IsCustomPosition {
			result = append(result, p)
			continue
		}
		if !found {
			p = roster.NewSeatingPosition(cell.StudentID, classID, cell.X, cell.Y)
		}
		p.XPos = cell.X
		p.YPos = cell.Y
		p.IsCustomPosition = false
		p.LastUpdated = now

		result = append(result, p)
		changes = append(changes, savePosition(p, roster.ChangeArranged, names[cell.StudentID]))
	}

	if err := s.commit(ctx, "arrange", changes...); err != nil {
		return nil, err
	}
	logger.Info("Arranged %d students of class %s in %d columns (%d positions written)",
		len(result), classID, columns, len(changes))
	return result, nil
}
