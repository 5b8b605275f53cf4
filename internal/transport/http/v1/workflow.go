package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
)

// RunWorkflow runs the alarm recheck workflow inside a chat.
// POST /api/dify/run-workflow
func (h *Handler) RunWorkflow(c echo.Context) error {
	var req domain.RecheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.Fail("invalid request body"))
	}

	resp, err := h.service.RunRecheck(c.Request().Context(), req)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RunWorkflowInner forwards a workflow run for internal callers.
// POST /api/dify/inner/run-workflow
func (h *Handler) RunWorkflowInner(c echo.Context) error {
	var req domain.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.Fail("invalid request body"))
	}

	resp, err := h.service.RunWorkflowInner(c.Request().Context(), req)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// AlarmTypes lists the alarm types the recheck workflow supports, keyed by name.
// GET /api/dify/get-support-llmAlarmTypes
func (h *Handler) AlarmTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.OK(h.service.AlarmTypesByName()))
}

// AlarmTypesInner lists the supported alarm types keyed by code.
// GET /api/dify/inner/get-support-llmAlarmTypes
func (h *Handler) AlarmTypesInner(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.OK(h.service.AlarmTypes()))
}

func workflowError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrMissingInputs):
		return c.JSON(http.StatusBadRequest, domain.Fail(err.Error()))
	case errors.Is(err, service.ErrWorkflowUnavailable):
		return c.JSON(http.StatusServiceUnavailable, domain.Fail(err.Error()))
	}
	log.Printf("ERROR: workflow run failed: %v", err)
	return c.JSON(http.StatusInternalServerError, nil)
}
