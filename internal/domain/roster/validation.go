package roster

import (
	"strings"

	"classroom-roster/pkg/validator"

	"github.com/google/uuid"
)

// Validate checks the field rules of a class.
func (c Class) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "id is required")
	}
	if err := validator.ValidateStruct(c); err != nil {
		return fromValidator(err)
	}
	return nil
}

// Validate checks the field rules of a student.
func (s Student) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "id is required")
	}
	if s.ClassID == uuid.Nil {
		return NewValidationError("class_id", "class_id is required")
	}
	if strings.TrimSpace(s.FirstName) == "" && strings.TrimSpace(s.LastName) == "" {
		return NewValidationError("name", "first_name or last_name is required")
	}
	if err := validator.ValidateStruct(s); err != nil {
		return fromValidator(err)
	}
	return nil
}

// Validate checks the field rules of a seating position.
func (p SeatingPosition) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("id", "id is required")
	}
	if p.StudentID == uuid.Nil || p.ClassID == uuid.Nil {
		return NewValidationError("student_id", "student_id and class_id are required")
	}
	if err := validator.ValidateStruct(p); err != nil {
		return fromValidator(err)
	}
	return nil
}

// Validate checks the field rules of a rating. The upper bound of Value
// depends on the owning class and is checked by the store.
func (r Rating) Validate() error {
	if r.ID == uuid.Nil {
		return NewValidationError("id", "id is required")
	}
	if r.StudentID == uuid.Nil || r.ClassID == uuid.Nil {
		return NewValidationError("student_id", "student_id and class_id are required")
	}
	if r.Date.IsZero() {
		return NewValidationError("date", "date is required")
	}
	if r.IsAbsent && r.Value != nil {
		return NewValidationError("value", "an absent student cannot have a rating value")
	}
	if err := validator.ValidateStruct(r); err != nil {
		return fromValidator(err)
	}
	return nil
}
