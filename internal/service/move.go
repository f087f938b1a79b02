package service

import (
	"context"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/pkg/logger"

	"github.com/google/uuid"
)

// MoveStudentToClass transfers a student to another class as one unit:
// the student's active ratings in the old class are archived, the
// student's class is changed, the old seating position is removed, and a
// new position is created at (0, 0) in the target class. Either every
// step is recorded or none is.
func (s *DataStore) MoveStudentToClass(ctx context.Context, studentID, targetClassID uuid.UUID) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.students.get(studentID)
	if !ok {
		return roster.Student{}, &roster.NotFoundError{Entity: roster.EntityStudent, ID: studentID.String()}
	}
	oldClassID := st.ClassID
	if oldClassID == targetClassID {
		return st, nil
	}

	moved := st
	moved.ClassID = targetClassID
	if err := s.checkStudentInvariants(st, moved); err != nil {
		return roster.Student{}, err
	}
	now := s.now()
	moved.ModifiedAt = now
	name := st.FullName()

	var changes []change
	archived := 0
	for _, r := range s.state.ratings.filter(func(r roster.Rating) bool {
		return r.StudentID == studentID && r.ClassID == oldClassID && !r.IsArchived
	}) {
		r.IsArchived = true
		changes = append(changes, saveRating(r, roster.ChangeArchived, name))
		archived++
	}

	changes = append(changes, saveStudent(moved, roster.ChangeMoved))

	if old, found := s.positionForLocked(studentID, oldClassID); found {
		changes = append(changes, deletePosition(old))
	}

	seatKind := roster.ChangeUpdated
	seat, found := s.positionForLocked(studentID, targetClassID)
	if !found {
		seat = roster.NewSeatingPosition(studentID, targetClassID, 0, 0)
		seatKind = roster.ChangeCreated
	}
	seat.XPos, seat.YPos = 0, 0
	seat.IsCustomPosition = false
	seat.LastUpdated = now
	changes = append(changes, savePosition(seat, seatKind, name))

	if err := s.commit(ctx, "move", changes...); err != nil {
		return roster.Student{}, err
	}

	logger.Info("Moved student %s from class %s to class %s (%d ratings archived)",
		studentID, oldClassID, targetClassID, archived)
	return moved, nil
}
