package service

import (
	"context"
	"sort"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

func saveRating(r roster.Rating, kind roster.ChangeKind, name string) change {
	return change{
		entity: roster.EntityRating,
		kind:   kind,
		id:     r.ID,
		name:   name,
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Ratings().Save(ctx, r)
		},
		apply: func(st *state) { st.ratings.put(r) },
	}
}

func deleteRating(r roster.Rating, name string) change {
	return change{
		entity: roster.EntityRating,
		kind:   roster.ChangeDeleted,
		id:     r.ID,
		name:   name,
		persist: func(ctx context.Context, e interfaces.Engine) error {
			return e.Ratings().Delete(ctx, r.ID)
		},
		apply: func(st *state) { st.ratings.remove(r.ID) },
	}
}

// GetRating returns the rating with id.
func (s *DataStore) GetRating(id uuid.UUID) (roster.Rating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ratings.get(id)
}

// RatingsForStudent returns a student's ratings across all classes, oldest first.
func (s *DataStore) RatingsForStudent(studentID uuid.UUID, includeArchived bool) []roster.Rating {
	return s.ratingsWhere(func(r roster.Rating) bool {
		return r.StudentID == studentID && (includeArchived || !r.IsArchived)
	})
}

// RatingsForClass returns the ratings given in a class, oldest first.
func (s *DataStore) RatingsForClass(classID uuid.UUID, includeArchived bool) []roster.Rating {
	return s.ratingsWhere(func(r roster.Rating) bool {
		return r.ClassID == classID && (includeArchived || !r.IsArchived)
	})
}

// RatingsForStudentInClass returns a student's ratings in one class, oldest first.
func (s *DataStore) RatingsForStudentInClass(studentID, classID uuid.UUID, includeArchived bool) []roster.Rating {
	return s.ratingsWhere(func(r roster.Rating) bool {
		return r.StudentID == studentID && r.ClassID == classID && (includeArchived || !r.IsArchived)
	})
}

func (s *DataStore) ratingsWhere(keep func(roster.Rating) bool) []roster.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state.ratings.filter(keep)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *DataStore) checkRatingInvariants(r roster.Rating) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	st, ok := s.state.students.get(r.StudentID)
	if !ok {
		return "", roster.NewValidationError("student_id", "student %s does not exist", r.StudentID)
	}
	c, ok := s.state.classes.get(r.ClassID)
	if !ok {
		return "", roster.NewValidationError("class_id", "class %s does not exist", r.ClassID)
	}
	if r.Value != nil && *r.Value > c.MaxRatingValue {
		return "", roster.NewValidationError("value", "value %d exceeds the maximum of %d for class %q", *r.Value, c.MaxRatingValue, c.Name)
	}
	return st.FullName(), nil
}

// AddRating appends a rating to a student's history. An empty school year
// is derived from the rating date.
func (s *DataStore) AddRating(ctx context.Context, r roster.Rating) (roster.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.ratings.get(r.ID); exists {
		return roster.Rating{}, roster.NewValidationError("id", "rating %s already exists", r.ID)
	}
	if r.SchoolYear == "" && !r.Date.IsZero() {
		r.SchoolYear = roster.SchoolYearFor(r.Date)
	}
	name, err := s.checkRatingInvariants(r)
	if err != nil {
		return roster.Rating{}, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	if err := s.commit(ctx, "add", saveRating(r, roster.ChangeCreated, name)); err != nil {
		return roster.Rating{}, err
	}
	return r, nil
}

// UpdateRating replaces an existing rating.
func (s *DataStore) UpdateRating(ctx context.Context, r roster.Rating) (roster.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRatingLocked(ctx, r, roster.ChangeUpdated)
}

func (s *DataStore) updateRatingLocked(ctx context.Context, r roster.Rating, kind roster.ChangeKind) (roster.Rating, error) {
	existing, ok := s.state.ratings.get(r.ID)
	if !ok {
		return roster.Rating{}, &roster.NotFoundError{Entity: roster.EntityRating, ID: r.ID.String()}
	}
	if r.SchoolYear == "" {
		r.SchoolYear = existing.SchoolYear
	}
	name, err := s.checkRatingInvariants(r)
	if err != nil {
		return roster.Rating{}, err
	}
	r.CreatedAt = existing.CreatedAt

	if err := s.commit(ctx, "update", saveRating(r, kind, name)); err != nil {
		return roster.Rating{}, err
	}
	return r, nil
}

// ArchiveRating hides a rating from default queries.
func (s *DataStore) ArchiveRating(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.state.ratings.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityRating, ID: id.String()}
	}
	r.IsArchived = true
	_, err := s.updateRatingLocked(ctx, r, roster.ChangeArchived)
	return err
}

// DeleteRating removes a rating.
func (s *DataStore) DeleteRating(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.state.ratings.get(id)
	if !ok {
		return &roster.NotFoundError{Entity: roster.EntityRating, ID: id.String()}
	}
	name := ""
	if st, ok := s.state.students.get(r.StudentID); ok {
		name = st.FullName()
	}
	return s.commit(ctx, "delete", deleteRating(r, name))
}
