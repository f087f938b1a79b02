package handlers

import (
	"net/http"
	"time"

	"classroom-roster/internal/domain/roster"
	serviceInterfaces "classroom-roster/internal/interfaces/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StudentHandler handles student-related HTTP requests
type StudentHandler struct {
	store serviceInterfaces.RosterStore
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(store serviceInterfaces.RosterStore) *StudentHandler {
	return &StudentHandler{store: store}
}

type StudentRequest struct {
	FirstName  string     `json:"first_name" validate:"required_without=LastName,max=50"`
	LastName   string     `json:"last_name" validate:"required_without=FirstName,max=50"`
	ClassID    uuid.UUID  `json:"class_id" validate:"required"`
	Notes      string     `json:"notes" validate:"max=500"`
	EntryDate  *time.Time `json:"entry_date"`
	IsArchived *bool      `json:"is_archived"`
}

type MoveRequest struct {
	ClassID uuid.UUID `json:"class_id" validate:"required"`
}

func (r StudentRequest) apply(st roster.Student) roster.Student {
	st.FirstName = r.FirstName
	st.LastName = r.LastName
	st.ClassID = r.ClassID
	st.Notes = r.Notes
	if r.EntryDate != nil {
		st.EntryDate = *r.EntryDate
	}
	if r.IsArchived != nil {
		st.IsArchived = *r.IsArchived
	}
	return st
}

// CreateStudent handles POST /students. Adding a student whose name
// already exists in the class returns the existing student with 200.
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req StudentRequest
	if !bindJSON(c, &req) {
		return
	}

	candidate := req.apply(roster.NewStudent(req.ClassID, req.FirstName, req.LastName))
	student, err := h.store.AddStudent(c.Request.Context(), candidate)
	if err != nil {
		respondError(c, err)
		return
	}

	if student.ID != candidate.ID {
		c.JSON(http.StatusOK, APIResponse{
			Success: true,
			Message: "Student already exists in this class",
			Data:    student,
		})
		return
	}

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: "Student created successfully",
		Data:    student,
	})
}

// GetStudent handles GET /students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	student, found := h.store.GetStudent(id)
	if !found {
		notFound(c, roster.EntityStudent, id)
		return
	}

	data := gin.H{"student": student}
	if p, ok := h.store.PositionFor(id, student.ClassID); ok {
		data["seating_position"] = p
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// UpdateStudent handles PUT /students/:id
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StudentRequest
	if !bindJSON(c, &req) {
		return
	}

	existing, found := h.store.GetStudent(id)
	if !found {
		notFound(c, roster.EntityStudent, id)
		return
	}

	student, err := h.store.UpdateStudent(c.Request.Context(), req.apply(existing))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Student updated successfully",
		Data:    student,
	})
}

// ArchiveStudent handles POST /students/:id/archive
func (h *StudentHandler) ArchiveStudent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.ArchiveStudent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Student archived successfully"})
}

// DeleteStudent handles DELETE /students/:id
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteStudent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Student deleted successfully"})
}

// MoveStudent handles POST /students/:id/move
func (h *StudentHandler) MoveStudent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !bindJSON(c, &req) {
		return
	}

	student, err := h.store.MoveStudentToClass(c.Request.Context(), id, req.ClassID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Student moved successfully",
		Data:    student,
	})
}

// ListRatings handles GET /students/:id/ratings
func (h *StudentHandler) ListRatings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: h.store.RatingsForStudent(id, includeArchived(c))})
}
