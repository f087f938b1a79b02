package roster

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestClass_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Class)
		wantErr bool
		field   string
	}{
		{name: "valid", mutate: func(c *Class) {}},
		{name: "blank name", mutate: func(c *Class) { c.Name = "  " }, wantErr: true, field: "name"},
		{name: "name too long", mutate: func(c *Class) { c.Name = "ninechars" }, wantErr: true, field: "name"},
		{name: "eight runes", mutate: func(c *Class) { c.Name = "Ärzte 7b" }},
		{name: "note too long", mutate: func(c *Class) { c.Note = "eleven char" }, wantErr: true, field: "note"},
		{name: "row zero", mutate: func(c *Class) { c.Row = 0 }, wantErr: true, field: "row"},
		{name: "row 13", mutate: func(c *Class) { c.Row = 13 }, wantErr: true, field: "row"},
		{name: "column 6", mutate: func(c *Class) { c.Column = 6 }, wantErr: true, field: "column"},
		{name: "missing id", mutate: func(c *Class) { c.ID = uuid.Nil }, wantErr: true, field: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClass("5a", 1, 1)
			tt.mutate(&c)
			err := c.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Expected field %q, got %+v", tt.field, verr)
			}
		})
	}
}

func TestStudent_Validate(t *testing.T) {
	classID := uuid.New()

	if err := NewStudent(classID, "Ada", "").Validate(); err != nil {
		t.Errorf("Expected first name only to be valid, got %v", err)
	}
	if err := NewStudent(classID, "", "Lovelace").Validate(); err != nil {
		t.Errorf("Expected last name only to be valid, got %v", err)
	}

	err := NewStudent(classID, " ", "\t").Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected validation error for blank names, got %v", err)
	}

	err = NewStudent(uuid.Nil, "Ada", "Lovelace").Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected validation error for missing class, got %v", err)
	}
}

func TestRating_Validate(t *testing.T) {
	r := NewRating(uuid.New(), uuid.New(), IntValue(2))
	if err := r.Validate(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	r.IsAbsent = true
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected absent rating with value to fail, got %v", err)
	}

	r = NewRating(uuid.New(), uuid.New(), IntValue(0))
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected zero value to fail, got %v", err)
	}

	r = NewRating(uuid.New(), uuid.New(), nil)
	if err := r.Validate(); err != nil {
		t.Errorf("Expected rating without value to be valid, got %v", err)
	}
}

func TestSeatingPosition_Validate(t *testing.T) {
	p := NewSeatingPosition(uuid.New(), uuid.New(), 0, 0)
	if err := p.Validate(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	p.XPos = -1
	if err := p.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected negative x to fail, got %v", err)
	}
}

func TestNameKey(t *testing.T) {
	if NameKey(" Ada ", "LOVELACE") != NameKey("ada", "lovelace") {
		t.Error("Expected names to normalize to the same key")
	}
	if NameKey("Ada", "") == NameKey("", "Ada") {
		t.Error("Expected first and last name to stay distinct")
	}
}

func TestSchoolYearFor(t *testing.T) {
	tests := map[string]string{
		"2026-07-31": "2025/2026",
		"2026-08-01": "2026/2027",
		"2027-01-15": "2026/2027",
	}
	for date, want := range tests {
		d, _ := time.Parse("2006-01-02", date)
		if got := SchoolYearFor(d); got != want {
			t.Errorf("SchoolYearFor(%s) = %s, want %s", date, got, want)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	c := NewClass("", 0, 1)
	err := c.Validate()
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "name must not be blank") || !strings.Contains(err.Error(), "row must be at least 1") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
