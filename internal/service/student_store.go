package service

import (
	"context"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
)

func saveStudent(st roster.Student, kind roster.ChangeKind) change {
	return change{
		entity: roster.EntityStudent,
		kind:   kind,
		id:     st.ID,
		name:   st.FullName(),
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Students().Save(ctx, st)
		},
		apply: func(state *state) { state.students.put(st) },
	}
}

func deleteStudent(st roster.Student) change {
	return change{
		entity: roster.EntityStudent,
		kind:   roster.ChangeDeleted,
		id:     st.ID,
		name:   st.FullName(),
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Students().Delete(ctx, st.ID)
		},
		apply: func(state *state) { state.students.remove(st.ID) },
	}
}

// GetStudent returns the student with id.
func (s *DataStore) GetStudent(id uuid.UUID) (roster.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.students.get(id)
}

// Students lists all students in insertion order.
func (s *DataStore) Students() []roster.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.students.filter(nil)
}

// StudentsForClass lists the students of a class in insertion order.
func (s *DataStore) StudentsForClass(classID uuid.UUID, includeArchived bool) []roster.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentsForClassLocked(classID, includeArchived)
}

func (s *DataStore) studentsForClassLocked(classID uuid.UUID, includeArchived bool) []roster.Student {
	return s.state.students.filter(func(st roster.Student) bool {
		return st.ClassID == classID && (includeArchived || !st.IsArchived)
	})
}

// StudentCountForClass counts the active students of a class.
func (s *DataStore) StudentCountForClass(classID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentCountLocked(classID, uuid.Nil)
}

func (s *DataStore) studentCountLocked(classID, excludeID uuid.UUID) int {
	n := 0
	for _, st := range s.state.students.items {
		if st.ClassID == classID && !st.IsArchived && st.ID != excludeID {
			n++
		}
	}
	return n
}

// IsStudentNameUnique reports whether no other active student of the class
// has the same normalized first and last name.
func (s *DataStore) IsStudentNameUnique(classID uuid.UUID, firstName, lastName string, excludeID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.namesakeLocked(classID, roster.NameKey(firstName, lastName), excludeID)
	return !found
}

func (s *DataStore) namesakeLocked(classID uuid.UUID, key string, excludeID uuid.UUID) (roster.Student, bool) {
	for _, st := range s.state.students.filter(nil) {
		if st.ClassID == classID && !st.IsArchived && st.ID != excludeID && st.NameKey() == key {
			return st, true
		}
	}
	return roster.Student{}, false
}

func (s *DataStore) checkCapacityLocked(classID, studentID uuid.UUID) error {
	c, ok := s.state.classes.get(classID)
	if !ok {
		return roster.NewValidationError("class_id", "class %s does not exist", classID)
	}
	if s.studentCountLocked(classID, studentID) >= s.maxStudents {
		return roster.NewValidationError("class_id", "class %q already has the maximum of %d students", c.Name, s.maxStudents)
	}
	return nil
}

// AddStudent validates and stores a new student. When an active student
// with the same name already exists in the class, that student is
// returned and nothing is written.
func (s *DataStore) AddStudent(ctx context.Context, st roster.Student) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.students.get(st.ID); exists {
		return roster.Student{}, roster.NewValidationError("id", "student %s already exists", st.ID)
	}
	if err := st.Validate(); err != nil {
		return roster.Student{}, err
	}
	if _, ok := s.state.classes.get(st.ClassID); !ok {
		return roster.Student{}, roster.NewValidationError("class_id", "class %s does not exist", st.ClassID)
	}

	if !st.IsArchived {
		if existing, found := s.namesakeLocked(st.ClassID, st.NameKey(), st.ID); found {
			logger.Info("Student %q already exists in class %s, skipping add", existing.FullName(), st.ClassID)
			return existing, nil
		}
		if err := s.checkCapacityLocked(st.ClassID, st.ID); err != nil {
			return roster.Student{}, err
		}
	}

	now := s.now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	if st.EntryDate.IsZero() {
		st.EntryDate = now
	}
	st.ModifiedAt = st.CreatedAt

	if err := s.commit(ctx, "add", saveStudent(st, roster.ChangeCreated)); err != nil {
		return roster.Student{}, err
	}
	return st, nil
}

// UpdateStudent replaces an existing student. A name that collides with
// another active student of the class is rejected.
func (s *DataStore) UpdateStudent(ctx context.Context, st roster.Student) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStudentLocked(ctx, st, roster.ChangeUpdated)
}

func (s *DataStore) updateStudentLocked(ctx context.Context, st roster.Student, kind roster.ChangeKind) (roster.Student, error) {
	existing, ok := s.state.students.get(st.ID)
	if !ok {
		return roster.Student{}, &roster.NotFoundError{Entity: roster.EntityStudent, ID: st.ID.String()}
	}
	if err := s.checkStudentInvariants(existing, st); err != nil {
		return roster.Student{}, err
	}
	st.CreatedAt = existing.CreatedAt
	st.ModifiedAt = s.now()

	if err := s.commit(ctx, "update", saveStudent(st, kind)); err != nil {
		return roster.Student{}, err
	}
	return st, nil
}

func (s *DataStore) checkStudentInvariants(existing, st roster.Student) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if _, ok := s.state.classes.get(st.ClassID); !ok {
		return roster.NewValidationError("class_id", "class %s does not exist", st.ClassID)
	}
	if st.IsArchived {
		return nil
	}
	if other, found := s.namesakeLocked(st.ClassID, st.NameKey(), st.ID); found {
		return roster.NewValidationError("name", "a student named %q already exists in this class", other.FullName())
	}
	if existing.IsArchived || existing.ClassID != st.ClassID {
		return s.checkCapacityLocked(st.ClassID, st.ID)
	}
	return nil
}

// ArchiveStudent hides a student from active views. Ratings and seating
// positions are kept.
func (s *DataStore) ArchiveStudent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.students.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityStudent, ID: id.String()}
	}
	st.IsArchived = true
	_, err := s.updateStudentLocked(ctx, st, roster.ChangeArchived)
	return err
}

// DeleteStudent removes a student with all of their seating positions and ratings.
func (s *DataStore) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.students.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityStudent, ID: id.String()}
	}
	return s.deleteStudentLocked(ctx, st)
}

// deleteStudentLocked deletes children first. A failed child delete is
// logged and the student is deleted anyway.
func (s *DataStore) deleteStudentLocked(ctx context.Context, st roster.Student) error {
	for _, p := range s.state.positions.filter(func(p roster.SeatingPosition) bool { return p.StudentID == st.ID }) {
		if err := s.commit(ctx, "delete", deletePosition(p)); err != nil {
			logger.WithEntity(string(roster.EntitySeating), p.ID).Errorf("Cascade delete for student %s failed: %v", st.ID, err)
		}
	}
	for _, r := range s.state.ratings.filter(func(r roster.Rating) bool { return r.StudentID == st.ID }) {
		if err := s.commit(ctx, "delete", deleteRating(r, st.FullName())); err != nil {
			logger.WithEntity(string(roster.EntityRating), r.ID).Errorf("Cascade delete for student %s failed: %v", st.ID, err)
		}
	}
	return s.commit(ctx, "delete", deleteStudent(st))
}
