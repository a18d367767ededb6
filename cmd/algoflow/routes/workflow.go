package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
)

// RegisterWorkflowRoutes registers all workflow-related routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(
		c.WorkflowRepo,
		c.ExecutionRepo,
		c.Validator,
		c.Scheduler,
		c.Executor,
		c.Components.Logger,
	)
	limits := newScopeLimits(c)

	wf := e.Group("/api/workflows")
	wf.Use(middleware.RequireAuth(c.Tokens))
	{
		wf.GET("", h.List, limits.read)
		wf.POST("", h.Create, limits.mutate)
		wf.GET("/:id", h.Get, limits.read)
		wf.PUT("/:id", h.Update, limits.mutate)
		wf.DELETE("/:id", h.Delete, limits.mutate)
		wf.GET("/:id/executions", h.ListExecutions, limits.read)
		wf.POST("/:id/execute", h.Execute, limits.execute)
		wf.POST("/:id/activate", h.Activate, limits.mutate)
		wf.POST("/:id/deactivate", h.Deactivate, limits.mutate)
	}
}
