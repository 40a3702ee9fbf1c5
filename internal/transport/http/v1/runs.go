package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/service"
)

// StartRun plans and starts a run.
// POST /v1/runs
func (h *Handler) StartRun(c echo.Context) error {
	var req domain.StartRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Context) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "context is required"})
	}

	resp, err := h.service.Start(c.Request().Context(), req.Context)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !resp.Started {
		return c.JSON(http.StatusConflict, resp)
	}
	return c.JSON(http.StatusAccepted, resp)
}

// ListRuns returns recent runs.
// GET /v1/runs
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	resp, err := h.service.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRun returns a run and its latest snapshot.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	resp, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListCheckpoints returns the checkpoints of a run.
// GET /v1/runs/:run_id/checkpoints
func (h *Handler) ListCheckpoints(c echo.Context) error {
	resp, err := h.service.ListCheckpoints(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRunEvents retrieves events for a run.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		val, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "after_ts must be an integer"})
		}
		afterTs = val
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		for _, typ := range strings.Split(t, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				types = append(types, typ)
			}
		}
	}

	resp, err := h.service.GetEvents(c.Request().Context(), runID, afterTs, types, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ResumeRun resumes a run from a checkpoint, or from the latest checkpoint
// taken before a step resolved.
// POST /v1/runs/:run_id/resume
func (h *Handler) ResumeRun(c echo.Context) error {
	runID := c.Param("run_id")
	var req domain.ResumeRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if (req.CheckpointID == "") == (req.BeforeStep == "") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "exactly one of checkpoint_id and before_step is required"})
	}

	ctx := c.Request().Context()
	var (
		resp *domain.StartRunResponse
		err  error
	)
	if req.BeforeStep != "" {
		resp, err = h.service.ResumeBefore(ctx, runID, req.BeforeStep)
	} else {
		resp, err = h.resumeCheckpoint(c, runID, req.CheckpointID)
	}
	if err != nil {
		return errorResponse(c, err)
	}
	if !resp.Started {
		return c.JSON(http.StatusConflict, resp)
	}
	return c.JSON(http.StatusAccepted, resp)
}

// resumeCheckpoint rejects checkpoints that belong to another run.
func (h *Handler) resumeCheckpoint(c echo.Context, runID, checkpointID string) (*domain.StartRunResponse, error) {
	ctx := c.Request().Context()
	list, err := h.service.ListCheckpoints(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, cp := range list.Checkpoints {
		if cp.CheckpointID == checkpointID {
			return h.service.Resume(ctx, checkpointID)
		}
	}
	return nil, service.ErrCheckpointNotFound
}

// SupervisorStatus reports whether a run is active.
// GET /v1/supervisor
func (h *Handler) SupervisorStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Status())
}

// StopSupervisor stops the active run.
// POST /v1/supervisor/stop
func (h *Handler) StopSupervisor(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Stop())
}

// PolicyUsage reports today's quota consumption.
// GET /v1/policy/usage
func (h *Handler) PolicyUsage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.PolicyUsage())
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, service.ErrCheckpointNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrRunFinalized):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
