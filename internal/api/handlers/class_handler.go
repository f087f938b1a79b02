package handlers

import (
	"net/http"
	"strconv"

	"classroom-roster/internal/domain/roster"
	serviceInterfaces "classroom-roster/internal/interfaces/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClassHandler handles class-related HTTP requests
type ClassHandler struct {
	store            serviceInterfaces.RosterStore
	defaultColumns   int
	defaultMaxRating int
}

// NewClassHandler creates a new class handler. defaultColumns is used by
// seating arrangement requests without a column count; defaultMaxRating
// applies to new classes created without max_rating_value.
func NewClassHandler(store serviceInterfaces.RosterStore, defaultColumns, defaultMaxRating int) *ClassHandler {
	if defaultColumns < 1 {
		defaultColumns = 6
	}
	if defaultMaxRating < 1 {
		defaultMaxRating = roster.DefaultMaxRatingValue
	}
	return &ClassHandler{store: store, defaultColumns: defaultColumns, defaultMaxRating: defaultMaxRating}
}

type ClassRequest struct {
	Name           string `json:"name" validate:"notblank,max=8"`
	Note           string `json:"note" validate:"max=10"`
	Row            int    `json:"row" validate:"min=1,max=12"`
	Column         int    `json:"column" validate:"min=1,max=5"`
	MaxRatingValue *int   `json:"max_rating_value" validate:"omitempty,min=1,max=10"`
	IsArchived     *bool  `json:"is_archived"`
}

type ArrangeRequest struct {
	Columns int `json:"columns" validate:"omitempty,min=1"`
}

func (r ClassRequest) apply(c roster.Class) roster.Class {
	c.Name = r.Name
	c.Note = r.Note
	c.Row = r.Row
	c.Column = r.Column
	if r.MaxRatingValue != nil {
		c.MaxRatingValue = *r.MaxRatingValue
	}
	if r.IsArchived != nil {
		c.IsArchived = *r.IsArchived
	}
	return c
}

// ListClasses handles GET /classes
func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes := h.store.ActiveClasses()
	if includeArchived(c) {
		classes = h.store.Classes()
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: classes})
}

// CreateClass handles POST /classes
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req ClassRequest
	if !bindJSON(c, &req) {
		return
	}

	class := roster.NewClass(req.Name, req.Row, req.Column)
	class.MaxRatingValue = h.defaultMaxRating

	class, err := h.store.AddClass(c.Request.Context(), req.apply(class))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: "Class created successfully",
		Data:    class,
	})
}

// GetClass handles GET /classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	class, found := h.store.GetClass(id)
	if !found {
		notFound(c, roster.EntityClass, id)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: gin.H{
			"class":         class,
			"student_count": h.store.StudentCountForClass(id),
			"capacity":      h.store.MaxStudentsPerClass(),
		},
	})
}

// UpdateClass handles PUT /classes/:id
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ClassRequest
	if !bindJSON(c, &req) {
		return
	}

	existing, found := h.store.GetClass(id)
	if !found {
		notFound(c, roster.EntityClass, id)
		return
	}

	class, err := h.store.UpdateClass(c.Request.Context(), req.apply(existing))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Class updated successfully",
		Data:    class,
	})
}

// ArchiveClass handles POST /classes/:id/archive
func (h *ClassHandler) ArchiveClass(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.ArchiveClass(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Class archived successfully"})
}

// DeleteClass handles DELETE /classes/:id
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteClass(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Class deleted successfully"})
}

// CheckAvailability handles GET /classes/availability?name=&row=&column=&exclude_id=
func (h *ClassHandler) CheckAvailability(c *gin.Context) {
	row, _ := strconv.Atoi(c.Query("row"))
	column, _ := strconv.Atoi(c.Query("column"))

	excludeID, _ := uuid.Parse(c.Query("exclude_id"))

	data := gin.H{}
	if name := c.Query("name"); name != "" {
		data["name_unique"] = h.store.IsClassNameUnique(name, excludeID)
	}
	if row > 0 && column > 0 {
		data["position_available"] = h.store.IsPositionAvailable(row, column, excludeID)
		if occupant, taken := h.store.ClassAt(row, column); taken && occupant.ID != excludeID {
			data["occupied_by"] = occupant.Name
		}
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// ListStudents handles GET /classes/:id/students
func (h *ClassHandler) ListStudents(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, found := h.store.GetClass(id); !found {
		notFound(c, roster.EntityClass, id)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: h.store.StudentsForClass(id, includeArchived(c))})
}

// ListRatings handles GET /classes/:id/ratings
func (h *ClassHandler) ListRatings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: h.store.RatingsForClass(id, includeArchived(c))})
}

// ListSeating handles GET /classes/:id/seating
func (h *ClassHandler) ListSeating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: h.store.PositionsForClass(id)})
}

// ArrangeSeating handles POST /classes/:id/seating/arrange
func (h *ClassHandler) ArrangeSeating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ArrangeRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	columns := req.Columns
	if columns == 0 {
		columns = h.defaultColumns
	}

	positions, err := h.store.ArrangeInGrid(c.Request.Context(), id, columns)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Seating arranged successfully",
		Data:    positions,
	})
}
