// Package v1 provides the versioned HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/contentflow/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Runs
	e.POST("/v1/runs", h.StartRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/checkpoints", h.ListCheckpoints)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.POST("/v1/runs/:run_id/resume", h.ResumeRun)

	// Supervisor
	e.GET("/v1/supervisor", h.SupervisorStatus)
	e.POST("/v1/supervisor/stop", h.StopSupervisor)

	e.GET("/v1/policy/usage", h.PolicyUsage)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
