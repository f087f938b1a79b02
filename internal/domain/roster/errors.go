package roster

import (
	"errors"
	"fmt"
	"strings"

	"classroom-roster/pkg/validator"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError reports an entity that breaks a field rule or a
// cross-record invariant. Nothing is written when it is returned.
type ValidationError struct {
	Field   string                      `json:"field"`
	Message string                      `json:"message"`
	Details []validator.ValidationError `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an id missing from the working set.
type NotFoundError struct {
	Entity EntityKind
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PersistenceError is returned only when the engine and the snapshot
// fallback both failed for one operation.
type PersistenceError struct {
	Op     string
	Entity EntityKind
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func fromValidator(err error) error {
	details := validator.FormatValidationError(err)
	if len(details) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	msgs := make([]string, 0, len(details))
	for _, d := range details {
		msgs = append(msgs, d.Message)
	}
	return &ValidationError{
		Field:   details[0].Field,
		Message: strings.Join(msgs, "; "),
		Details: details,
	}
}
