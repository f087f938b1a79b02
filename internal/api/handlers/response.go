package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"classroom-roster/internal/domain/roster"
	"classroom-roster/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// respondError maps store errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *roster.ValidationError

	switch {
	case errors.As(err, &validationErr):
		resp := APIResponse{Success: false, Message: validationErr.Message}
		if len(validationErr.Details) > 0 {
			resp.Errors = validationErr.Details
		} else if validationErr.Field != "" {
			resp.Errors = []validator.ValidationError{{Field: validationErr.Field, Message: validationErr.Message}}
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Message: err.Error()})
	case errors.Is(err, roster.ErrPersistence):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Message: "Change could not be stored, please retry",
			Errors:  err.Error(),
		})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Message: err.Error()})
	}
}

// bindJSON binds and validates the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Errors:  err.Error(),
		})
		return false
	}

	if err := validator.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  validator.FormatValidationError(err),
		})
		return false
	}
	return true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid " + param + " format",
		})
		return uuid.Nil, false
	}
	return id, true
}

func includeArchived(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("include_archived", "false"))
	return v
}

func notFound(c *gin.Context, entity roster.EntityKind, id uuid.UUID) {
	respondError(c, &roster.NotFoundError{Entity: entity, ID: id.String()})
}
