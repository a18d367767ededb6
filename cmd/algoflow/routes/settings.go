package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
)

// RegisterSettingsRoutes registers gateway configuration routes
func RegisterSettingsRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSettingsHandler(c.SettingsRepo, c.Cipher, c.Components.Logger)
	limits := newScopeLimits(c)

	settings := e.Group("/api/settings")
	settings.Use(middleware.RequireAuth(c.Tokens))
	{
		settings.GET("", h.Get, limits.read)
		settings.PUT("", h.Update, limits.mutate)
		settings.POST("/test", h.Test, limits.mutate)
		settings.GET("/analyzer", h.Analyzer, limits.read)
		settings.POST("/analyzer", h.AnalyzerToggle, limits.mutate)
	}
}
