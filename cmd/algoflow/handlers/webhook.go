package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/common/engine"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
	"github.com/algoflow/algoflow/common/repository"
)

// WebhookHandler handles anonymous webhook triggers
type WebhookHandler struct {
	workflows *repository.WorkflowRepository
	executor  *engine.Executor
	log       *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(workflows *repository.WorkflowRepository, executor *engine.Executor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		workflows: workflows,
		executor:  executor,
		log:       log,
	}
}

// Trigger runs an active workflow with the posted JSON payload. Unknown
// ids and inactive workflows answer identically.
// POST /api/webhooks/:id
func (h *WebhookHandler) Trigger(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := workflowID(c)
	if err != nil {
		return invalidWorkflowID(c)
	}

	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return webhookNotFound(c)
		}
		h.log.Error("failed to load workflow", "error", err, "workflow_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load workflow",
		})
	}
	if !wf.IsActive {
		return webhookNotFound(c)
	}

	payload, err := optionalJSONBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "request body must be valid JSON",
		})
	}

	h.log.Info("webhook received", "workflow_id", id)
	resp := h.executor.Execute(ctx, id, models.TriggerWebhook, payload)
	return c.JSON(executionStatusCode(resp), resp)
}

func webhookNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]interface{}{
		"error": "workflow not found or inactive",
	})
}
