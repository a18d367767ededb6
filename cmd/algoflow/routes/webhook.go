package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
)

// RegisterWebhookRoutes registers the anonymous webhook trigger route
func RegisterWebhookRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWebhookHandler(c.WorkflowRepo, c.Executor, c.Components.Logger)
	limits := newScopeLimits(c)

	// No auth: webhook callers identify a workflow by id and are
	// throttled per source IP
	e.POST("/api/webhooks/:id", h.Trigger, limits.execute)
}
