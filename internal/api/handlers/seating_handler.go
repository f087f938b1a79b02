package handlers

import (
	"net/http"

	"classroom-roster/internal/domain/roster"
	serviceInterfaces "classroom-roster/internal/interfaces/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SeatingHandler handles seating chart requests
type SeatingHandler struct {
	store serviceInterfaces.RosterStore
}

// NewSeatingHandler creates a new seating handler
func NewSeatingHandler(store serviceInterfaces.RosterStore) *SeatingHandler {
	return &SeatingHandler{store: store}
}

type SeatingRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
	ClassID   uuid.UUID `json:"class_id" validate:"required"`
	XPos      int       `json:"x_pos" validate:"min=0"`
	YPos      int       `json:"y_pos" validate:"min=0"`
}

// SavePosition handles PUT /seating. Positions placed through the API are
// marked as custom.
func (h *SeatingHandler) SavePosition(c *gin.Context) {
	var req SeatingRequest
	if !bindJSON(c, &req) {
		return
	}

	p := roster.NewSeatingPosition(req.StudentID, req.ClassID, req.XPos, req.YPos)
	p.IsCustomPosition = true

	saved, err := h.store.SavePosition(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Seating position saved successfully",
		Data:    saved,
	})
}

// DeletePosition handles DELETE /seating/:id
func (h *SeatingHandler) DeletePosition(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeletePosition(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Seating position deleted successfully"})
}
