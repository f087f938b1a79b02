package handlers

import (
	"context"
	"net/http"

	"classroom-roster/internal/api/middleware"
	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BatchHandler exposes bulk operations. Each request blocks until every
// item is processed.
type BatchHandler struct {
	orchestrator *service.BatchOrchestrator
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(orchestrator *service.BatchOrchestrator) *BatchHandler {
	return &BatchHandler{orchestrator: orchestrator}
}

type BatchRequest struct {
	IDs     []uuid.UUID `json:"ids" validate:"required,min=1"`
	ClassID uuid.UUID   `json:"class_id"`
}

type BatchResponse struct {
	service.BatchResult
	Events []roster.ChangeEvent `json:"events"`
}

type batchStarter func(ctx context.Context, req BatchRequest) *service.Batch

func (h *BatchHandler) run(c *gin.Context, start batchStarter) {
	var req BatchRequest
	if !bindJSON(c, &req) {
		return
	}

	batch := start(c.Request.Context(), req)
	events := make([]roster.ChangeEvent, 0, len(req.IDs))
	for event := range batch.Events() {
		events = append(events, event)
	}
	result := batch.Wait()

	middleware.RequestLogger(c).WithFields(logrus.Fields{
		"items":     len(req.IDs),
		"succeeded": result.SuccessCount,
		"failed":    result.FailureCount,
	}).Info("Batch request finished")

	status := http.StatusOK
	if result.SuccessCount == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, APIResponse{
		Success: result.FailureCount == 0,
		Data:    BatchResponse{BatchResult: result, Events: events},
	})
}

// ArchiveStudents handles POST /batch/students/archive
func (h *BatchHandler) ArchiveStudents(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.ArchiveStudents(ctx, req.IDs, nil)
	})
}

// DeleteStudents handles POST /batch/students/delete
func (h *BatchHandler) DeleteStudents(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.DeleteStudents(ctx, req.IDs, nil)
	})
}

// MoveStudents handles POST /batch/students/move
func (h *BatchHandler) MoveStudents(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.MoveStudents(ctx, req.IDs, req.ClassID, nil)
	})
}

// ArchiveClasses handles POST /batch/classes/archive
func (h *BatchHandler) ArchiveClasses(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.ArchiveClasses(ctx, req.IDs, nil)
	})
}

// DeleteClasses handles POST /batch/classes/delete
func (h *BatchHandler) DeleteClasses(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.DeleteClasses(ctx, req.IDs, nil)
	})
}

// ArchiveRatings handles POST /batch/ratings/archive
func (h *BatchHandler) ArchiveRatings(c *gin.Context) {
	h.run(c, func(ctx context.Context, req BatchRequest) *service.Batch {
		return h.orchestrator.ArchiveRatings(ctx, req.IDs, nil)
	})
}
