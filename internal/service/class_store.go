package service

import (
	"context"
	"sort"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
)

func saveClass(c roster.Class, kind roster.ChangeKind) change {
	return change{
		entity: roster.EntityClass,
		kind:   kind,
		id:     c.ID,
		name:   c.DisplayName(),
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Classes().Save(ctx, c)
		},
		apply: func(st *state) { st.classes.put(c) },
	}
}

func deleteClass(c roster.Class) change {
	return change{
		entity: roster.EntityClass,
		kind:   roster.ChangeDeleted,
		id:     c.ID,
		name:   c.DisplayName(),
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Classes().Delete(ctx, c.ID)
		},
		apply: func(st *state) { st.classes.remove(c.ID) },
	}
}

// GetClass returns the class with id.
func (s *DataStore) GetClass(id uuid.UUID) (roster.Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.classes.get(id)
}

// Classes lists all classes in insertion order, archived ones included.
func (s *DataStore) Classes() []roster.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.classes.filter(nil)
}

// ActiveClasses lists non-archived classes ordered by grid row, then column.
func (s *DataStore) ActiveClasses() []roster.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state.classes.filter(func(c roster.Class) bool { return !c.IsArchived })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// ClassAt returns the active class occupying a grid cell.
func (s *DataStore) ClassAt(row, column int) (roster.Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classAtLocked(row, column, uuid.Nil)
}

func (s *DataStore) classAtLocked(row, column int, excludeID uuid.UUID) (roster.Class, bool) {
	for _, c := range s.state.classes.items {
		if !c.IsArchived && c.ID != excludeID && c.Row == row && c.Column == column {
			return c, true
		}
	}
	return roster.Class{}, false
}

// IsClassNameUnique reports whether no other active class uses name,
// compared case-insensitively. The class with excludeID is skipped so an
// update can keep its own name; pass uuid.Nil for new classes.
func (s *DataStore) IsClassNameUnique(name string, excludeID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isClassNameUniqueLocked(name, excludeID)
}

func (s *DataStore) isClassNameUniqueLocked(name string, excludeID uuid.UUID) bool {
	key := roster.NormalizeName(name)
	for _, c := range s.state.classes.items {
		if !c.IsArchived && c.ID != excludeID && roster.NormalizeName(c.Name) == key {
			return false
		}
	}
	return true
}

// IsPositionAvailable reports whether no other active class occupies the cell.
func (s *DataStore) IsPositionAvailable(row, column int, excludeID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, taken := s.classAtLocked(row, column, excludeID)
	return !taken
}

func (s *DataStore) checkClassInvariants(c roster.Class) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.IsArchived {
		return nil
	}
	if !s.isClassNameUniqueLocked(c.Name, c.ID) {
		return roster.NewValidationError("name", "a class named %q already exists", c.Name)
	}
	if other, taken := s.classAtLocked(c.Row, c.Column, c.ID); taken {
		return roster.NewValidationError("row", "grid cell (%d, %d) is already used by class %q", c.Row, c.Column, other.Name)
	}
	return nil
}

// AddClass validates and stores a new class.
func (s *DataStore) AddClass(ctx context.Context, c roster.Class) (roster.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.classes.get(c.ID); exists {
		return roster.Class{}, roster.NewValidationError("id", "class %s already exists", c.ID)
	}
	if err := s.checkClassInvariants(c); err != nil {
		return roster.Class{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.ModifiedAt = c.CreatedAt

	if err := s.commit(ctx, "add", saveClass(c, roster.ChangeCreated)); err != nil {
		return roster.Class{}, err
	}
	return c, nil
}

// UpdateClass replaces an existing class. Unarchiving re-checks name and cell.
func (s *DataStore) UpdateClass(ctx context.Context, c roster.Class) (roster.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateClassLocked(ctx, c, roster.ChangeUpdated)
}

func (s *DataStore) updateClassLocked(ctx context.Context, c roster.Class, kind roster.ChangeKind) (roster.Class, error) {
	existing, ok := s.state.classes.get(c.ID)
	if !ok {
		return roster.Class{}, &roster.NotFoundError{Entity: roster.EntityClass, ID: c.ID.String()}
	}
	if err := s.checkClassInvariants(c); err != nil {
		return roster.Class{}, err
	}
	c.CreatedAt = existing.CreatedAt
	c.ModifiedAt = s.now()

	if err := s.commit(ctx, "update", saveClass(c, kind)); err != nil {
		return roster.Class{}, err
	}
	return c, nil
}

// ArchiveClass hides a class from active views. Its students are kept.
func (s *DataStore) ArchiveClass(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.state.classes.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityClass, ID: id.String()}
	}
	c.IsArchived = true
	_, err := s.updateClassLocked(ctx, c, roster.ChangeArchived)
	return err
}

// DeleteClass removes a class together with its students, their seating
// positions and ratings. Child failures are logged and do not stop the
// class itself from being deleted.
func (s *DataStore) DeleteClass(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.state.classes.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityClass, ID: id.String()}
	}

	students := s.state.students.filter(func(st roster.Student) bool { return st.ClassID == id })
	for _, st := range students {
		if err := s.deleteStudentLocked(ctx, st); err != nil {
			logger.WithEntity(string(roster.EntityStudent), st.ID).Errorf("Cascade delete for class %s failed: %v", id, err)
		}
	}

	// Rows left behind by students that moved away from this class.
	for _, p := range s.state.positions.filter(func(p roster.SeatingPosition) bool { return p.ClassID == id }) {
		if err := s.commit(ctx, "delete", deletePosition(p)); err != nil {
			logger.WithEntity(string(roster.EntitySeating), p.ID).Errorf("Cascade delete for class %s failed: %v", id, err)
		}
	}
	for _, r := range s.state.ratings.filter(func(r roster.Rating) bool { return r.ClassID == id }) {
		if err := s.commit(ctx, "delete", deleteRating(r, "")); err != nil {
			logger.WithEntity(string(roster.EntityRating), r.ID).Errorf("Cascade delete for class %s failed: %v", id, err)
		}
	}

	return s.commit(ctx, "delete", deleteClass(c))
}
