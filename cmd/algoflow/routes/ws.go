package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
)

// RegisterWSRoutes registers the execution events stream
func RegisterWSRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWSHandler(c.Hub, c.Components.Logger)

	// Browsers cannot set headers on upgrade requests; RequireAuth
	// accepts the token query parameter here
	e.GET("/ws/executions", h.Connect, middleware.RequireAuth(c.Tokens))
}
