package roster

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxStudentsPerClass is the number of active students a class can hold.
	MaxStudentsPerClass = 40

	// Grid bounds of the weekly timetable a class is placed on.
	GridRows    = 12
	GridColumns = 5

	DefaultMaxRatingValue = 4
)

// Class is a teaching group placed on one cell of the weekly grid.
type Class struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string    `json:"name" gorm:"not null" validate:"notblank,max=8"`
	Note           string    `json:"note" validate:"max=10"`
	Row            int       `json:"row" gorm:"column:grid_row;not null" validate:"min=1,max=12"`
	Column         int       `json:"column" gorm:"column:grid_column;not null" validate:"min=1,max=5"`
	MaxRatingValue int       `json:"max_rating_value" gorm:"not null;default:4" validate:"min=1,max=10"`
	IsArchived     bool      `json:"is_archived" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// Student belongs to exactly one class.
type Student struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName  string    `json:"first_name" validate:"max=50"`
	LastName   string    `json:"last_name" validate:"max=50"`
	ClassID    uuid.UUID `json:"class_id" gorm:"type:uuid;not null;index"`
	Notes      string    `json:"notes" validate:"max=500"`
	EntryDate  time.Time `json:"entry_date"`
	IsArchived bool      `json:"is_archived" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SeatingPosition is a student's cell on the seating chart of a class.
// IsCustomPosition marks positions the teacher placed by hand.
type SeatingPosition struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	StudentID        uuid.UUID `json:"student_id" gorm:"type:uuid;not null;uniqueIndex:idx_seating_student_class"`
	ClassID          uuid.UUID `json:"class_id" gorm:"type:uuid;not null;uniqueIndex:idx_seating_student_class"`
	XPos             int       `json:"x_pos" validate:"min=0"`
	YPos             int       `json:"y_pos" validate:"min=0"`
	IsCustomPosition bool      `json:"is_custom_position"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Rating is one entry in a student's per-session rating history.
// Value is ordinal with 1 as the best grade; nil means no value was given.
type Rating struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	StudentID  uuid.UUID `json:"student_id" gorm:"type:uuid;not null;index"`
	ClassID    uuid.UUID `json:"class_id" gorm:"type:uuid;not null;index"`
	Date       time.Time `json:"date" gorm:"not null"`
	Value      *int      `json:"value,omitempty" validate:"omitempty,min=1"`
	IsAbsent   bool      `json:"is_absent"`
	IsArchived bool      `json:"is_archived" gorm:"not null;default:false"`
	SchoolYear string    `json:"school_year" validate:"max=9"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c Class) GetID() uuid.UUID           { return c.ID }
func (s Student) GetID() uuid.UUID         { return s.ID }
func (p SeatingPosition) GetID() uuid.UUID { return p.ID }
func (r Rating) GetID() uuid.UUID          { return r.ID }

// NewClass creates a class with a fresh identity and default timestamps.
func NewClass(name string, row, column int) Class {
	now := time.Now()
	return Class{
		ID:             uuid.New(),
		Name:           name,
		Row:            row,
		Column:         column,
		MaxRatingValue: DefaultMaxRatingValue,
		CreatedAt:      now,
		ModifiedAt:     now,
	}
}

// NewStudent creates a student of the given class.
func NewStudent(classID uuid.UUID, firstName, lastName string) Student {
	now := time.Now()
	return Student{
		ID:         uuid.New(),
		FirstName:  firstName,
		LastName:   lastName,
		ClassID:    classID,
		EntryDate:  now,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// NewSeatingPosition creates an auto-arranged position.
func NewSeatingPosition(studentID, classID uuid.UUID, x, y int) SeatingPosition {
	return SeatingPosition{
		ID:          uuid.New(),
		StudentID:   studentID,
		ClassID:     classID,
		XPos:        x,
		YPos:        y,
		LastUpdated: time.Now(),
	}
}

// NewRating creates a rating dated now. A nil value records a session without a grade.
func NewRating(studentID, classID uuid.UUID, value *int) Rating {
	now := time.Now()
	return Rating{
		ID:         uuid.New(),
		StudentID:  studentID,
		ClassID:    classID,
		Date:       now,
		Value:      value,
		SchoolYear: SchoolYearFor(now),
		CreatedAt:  now,
	}
}

// IntValue is a helper for building rating values.
func IntValue(v int) *int {
	return &v
}

// DisplayName is the label shown to teachers for the class.
func (c Class) DisplayName() string {
	return c.Name
}

// FullName joins the non-empty name parts.
func (s Student) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

// NameKey is the normalized (first, last) pair used for uniqueness checks.
func (s Student) NameKey() string {
	return NameKey(s.FirstName, s.LastName)
}

// NameKey normalizes a student name pair for case-insensitive comparison.
func NameKey(firstName, lastName string) string {
	return NormalizeName(firstName) + "\x00" + NormalizeName(lastName)
}

// NormalizeName trims and lower-cases a name part.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SchoolYearFor returns the school year containing t, e.g. "2026/2027".
// A new school year starts on 1 August.
func SchoolYearFor(t time.Time) string {
	year := t.Year()
	if t.Month() < time.August {
		year--
	}
	return fmt.Sprintf("%d/%d", year, year+1)
}
