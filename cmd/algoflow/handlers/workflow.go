package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/common/engine"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
	"github.com/algoflow/algoflow/common/repository"
	"github.com/algoflow/algoflow/common/scheduler"
	"github.com/algoflow/algoflow/common/validation"
)

const (
	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// WorkflowHandler handles workflow CRUD, lifecycle and manual runs
type WorkflowHandler struct {
	workflows  *repository.WorkflowRepository
	executions *repository.ExecutionRepository
	validator  *validation.GraphValidator
	scheduler  *scheduler.Scheduler
	executor   *engine.Executor
	log        *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(
	workflows *repository.WorkflowRepository,
	executions *repository.ExecutionRepository,
	validator *validation.GraphValidator,
	sched *scheduler.Scheduler,
	executor *engine.Executor,
	log *logger.Logger,
) *WorkflowHandler {
	return &WorkflowHandler{
		workflows:  workflows,
		executions: executions,
		validator:  validator,
		scheduler:  sched,
		executor:   executor,
		log:        log,
	}
}

type createWorkflowRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Nodes       []models.Node `json:"nodes"`
	Edges       []models.Edge `json:"edges"`
}

// List returns all workflows with their latest execution status
// GET /api/workflows
func (h *WorkflowHandler) List(c echo.Context) error {
	items, err := h.workflows.List(c.Request().Context())
	if err != nil {
		h.log.Error("failed to list workflows", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to list workflows",
		})
	}
	if items == nil {
		items = []*models.WorkflowSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

// Create stores a new workflow graph
// POST /api/workflows
func (h *WorkflowHandler) Create(c echo.Context) error {
	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "name is required",
		})
	}
	if err := h.validator.ValidateGraph(req.Nodes, req.Edges); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	}
	if err := h.workflows.Create(c.Request().Context(), wf); err != nil {
		h.log.Error("failed to create workflow", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to create workflow",
		})
	}

	h.log.Info("workflow created", "workflow_id", wf.ID, "name", wf.Name)
	return c.JSON(http.StatusCreated, wf)
}

// Get returns one workflow with its full graph
// GET /api/workflows/:id
func (h *WorkflowHandler) Get(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}

	wf, err := h.workflows.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.workflowLoadError(c, err)
	}
	return c.JSON(http.StatusOK, wf)
}

// Update applies a merge patch to the editable workflow fields. Absent
// fields keep their stored values; lifecycle fields (is_active,
// schedule_job_id) only change through activate/deactivate.
// PUT /api/workflows/:id
func (h *WorkflowHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}
	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		return h.workflowLoadError(c, err)
	}

	patch, err := io.ReadAll(c.Request().Body)
	if err != nil || len(patch) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	current, err := json.Marshal(models.WorkflowUpdate{
		Name:        &wf.Name,
		Description: &wf.Description,
		Nodes:       &wf.Nodes,
		Edges:       &wf.Edges,
	})
	if err != nil {
		h.log.Error("failed to encode workflow for patch", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to update workflow",
		})
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid merge patch",
		})
	}

	var update models.WorkflowUpdate
	if err := json.Unmarshal(merged, &update); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid merge patch",
		})
	}
	if update.Name != nil {
		wf.Name = *update.Name
	}
	if update.Description != nil {
		wf.Description = *update.Description
	}
	if update.Nodes != nil {
		wf.Nodes = *update.Nodes
	}
	if update.Edges != nil {
		wf.Edges = *update.Edges
	}

	if strings.TrimSpace(wf.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "name is required",
		})
	}
	if err := h.validator.ValidateGraph(wf.Nodes, wf.Edges); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := h.workflows.Update(ctx, wf); err != nil {
		h.log.Error("failed to update workflow", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to update workflow",
		})
	}
	return c.JSON(http.StatusOK, wf)
}

// Delete removes a workflow and its execution history. Active workflows
// are unscheduled first.
// DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}
	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		return h.workflowLoadError(c, err)
	}

	if wf.ScheduleJobID != nil {
		h.scheduler.Deactivate(*wf.ScheduleJobID)
	}
	if err := h.workflows.Delete(ctx, id); err != nil {
		h.log.Error("failed to delete workflow", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to delete workflow",
		})
	}

	h.log.Info("workflow deleted", "workflow_id", id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Workflow deleted",
	})
}

// Activate registers the workflow's schedule and marks it active
// POST /api/workflows/:id/activate
func (h *WorkflowHandler) Activate(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}
	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		return h.workflowLoadError(c, err)
	}

	// Re-activation replaces any existing schedule
	if wf.ScheduleJobID != nil {
		h.scheduler.Deactivate(*wf.ScheduleJobID)
	}

	jobID, err := h.scheduler.Activate(wf)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
	}

	if err := h.workflows.SetActive(ctx, id, true, &jobID); err != nil {
		h.scheduler.Deactivate(jobID)
		h.log.Error("failed to mark workflow active", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to activate workflow",
		})
	}

	response := map[string]interface{}{
		"status":   "success",
		"message":  "Workflow activated",
		"job_id":   jobID,
		"next_run": nil,
	}
	if next := h.scheduler.NextRun(jobID); next != nil {
		response["next_run"] = next.UTC()
	}

	h.log.Info("workflow activated", "workflow_id", id, "job_id", jobID)
	return c.JSON(http.StatusOK, response)
}

// Deactivate removes the workflow's schedule and marks it inactive
// POST /api/workflows/:id/deactivate
func (h *WorkflowHandler) Deactivate(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}
	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		return h.workflowLoadError(c, err)
	}

	if wf.ScheduleJobID != nil {
		h.scheduler.Deactivate(*wf.ScheduleJobID)
	}
	if err := h.workflows.SetActive(ctx, id, false, nil); err != nil {
		h.log.Error("failed to mark workflow inactive", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to deactivate workflow",
		})
	}

	h.log.Info("workflow deactivated", "workflow_id", id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Workflow deactivated",
	})
}

// ListExecutions returns recent executions, newest first
// GET /api/workflows/:id/executions?limit=N
func (h *WorkflowHandler) ListExecutions(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}

	limit := defaultExecutionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}

	executions, err := h.executions.ListByWorkflow(c.Request().Context(), id, limit)
	if err != nil {
		h.log.Error("failed to list executions", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to list executions",
		})
	}
	if executions == nil {
		executions = []*models.Execution{}
	}
	return c.JSON(http.StatusOK, executions)
}

// Execute runs a workflow immediately. An optional JSON body is passed
// to the run as the webhook variable.
// POST /api/workflows/:id/execute
func (h *WorkflowHandler) Execute(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}
	if _, err := h.workflows.GetByID(ctx, id); err != nil {
		return h.workflowLoadError(c, err)
	}

	payload, err := optionalJSONBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "request body must be valid JSON",
		})
	}

	resp := h.executor.Execute(ctx, id, models.TriggerManual, payload)
	return c.JSON(executionStatusCode(resp), resp)
}

// workflowID parses the :id route parameter
func workflowID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func invalidWorkflowID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": "invalid workflow id",
	})
}

// workflowLoadError maps repository errors to HTTP responses
func (h *WorkflowHandler) workflowLoadError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Workflow not found",
		})
	}
	h.log.Error("failed to load workflow", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "failed to load workflow",
	})
}

// optionalJSONBody decodes a request body when one is present. Any JSON
// value is accepted; the engine exposes it as the webhook variable.
func optionalJSONBody(c echo.Context) (any, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// executionStatusCode maps an execution envelope onto an HTTP status.
// Business failures inside a run still return the envelope with 200; only
// the single-flight rejection gets a distinct code.
func executionStatusCode(resp *engine.ExecuteResponse) int {
	if resp.AlreadyRunning {
		return http.StatusConflict
	}
	return http.StatusOK
}
