package handlers

import (
	"net/http"
	"time"

	"classroom-roster/internal/domain/roster"
	serviceInterfaces "classroom-roster/internal/interfaces/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RatingHandler handles rating history requests
type RatingHandler struct {
	store serviceInterfaces.RosterStore
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(store serviceInterfaces.RosterStore) *RatingHandler {
	return &RatingHandler{store: store}
}

type RatingRequest struct {
	StudentID  uuid.UUID  `json:"student_id" validate:"required"`
	ClassID    uuid.UUID  `json:"class_id" validate:"required"`
	Date       *time.Time `json:"date"`
	Value      *int       `json:"value" validate:"omitempty,min=1"`
	IsAbsent   bool       `json:"is_absent"`
	SchoolYear string     `json:"school_year" validate:"max=9"`
}

// CreateRating handles POST /ratings
func (h *RatingHandler) CreateRating(c *gin.Context) {
	var req RatingRequest
	if !bindJSON(c, &req) {
		return
	}

	r := roster.NewRating(req.StudentID, req.ClassID, req.Value)
	r.IsAbsent = req.IsAbsent
	if req.Date != nil {
		r.Date = *req.Date
		r.SchoolYear = ""
	}
	if req.SchoolYear != "" {
		r.SchoolYear = req.SchoolYear
	}

	rating, err := h.store.AddRating(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: "Rating created successfully",
		Data:    rating,
	})
}

// GetRating handles GET /ratings/:id
func (h *RatingHandler) GetRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rating, found := h.store.GetRating(id)
	if !found {
		notFound(c, roster.EntityRating, id)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: rating})
}

// ArchiveRating handles POST /ratings/:id/archive
func (h *RatingHandler) ArchiveRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.ArchiveRating(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Rating archived successfully"})
}

// DeleteRating handles DELETE /ratings/:id
func (h *RatingHandler) DeleteRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteRating(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Rating deleted successfully"})
}

// UpdateRating handles PUT /ratings/:id
func (h *RatingHandler) UpdateRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RatingRequest
	if !bindJSON(c, &req) {
		return
	}

	existing, found := h.store.GetRating(id)
	if !found {
		notFound(c, roster.EntityRating, id)
		return
	}
	existing.StudentID = req.StudentID
	existing.ClassID = req.ClassID
	existing.Value = req.Value
	existing.IsAbsent = req.IsAbsent
	if req.Date != nil {
		existing.Date = *req.Date
	}
	if req.SchoolYear != "" {
		existing.SchoolYear = req.SchoolYear
	}

	rating, err := h.store.UpdateRating(c.Request.Context(), existing)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Rating updated successfully",
		Data:    rating,
	})
}
