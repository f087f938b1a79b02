package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	serviceInterfaces "classroom-roster/internal/interfaces/service"

	"github.com/gin-gonic/gin"
)

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	store   serviceInterfaces.RosterStore
	checks  map[string]HealthCheckFunc
	version string
}

// NewHealthHandler creates a new health handler. checks are keyed by
// service name, e.g. "database" or "snapshot".
func NewHealthHandler(store serviceInterfaces.RosterStore, version string, checks map[string]HealthCheckFunc) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheckFunc{}
	}
	return &HealthHandler{store: store, checks: checks, version: version}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                          `json:"status"`
	Timestamp time.Time                       `json:"timestamp"`
	Version   string                          `json:"version"`
	Services  map[string]string               `json:"services"`
	Backend   serviceInterfaces.BackendStatus `json:"backend"`
}

// HealthCheck handles GET /health. A degraded store still answers 200
// because writes are captured by the snapshot store.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			continue
		}
		services[name] = "healthy"
	}

	backend := h.store.Status()
	status := "healthy"
	if backend.Degraded {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   h.version,
		Services:  services,
		Backend:   backend,
	})
}

// ReadinessCheck handles GET /ready. The store is ready once either
// backend accepts writes.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	ready := len(h.checks) == 0
	for _, check := range h.checks {
		if check(ctx) == nil {
			ready = true
			break
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"ready":     ready,
		"timestamp": time.Now(),
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alive":     true,
		"timestamp": time.Now(),
	})
}
