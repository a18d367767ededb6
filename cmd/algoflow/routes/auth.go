package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
)

// RegisterAuthRoutes registers all authentication routes
func RegisterAuthRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAuthHandler(c.SettingsRepo, c.Tokens, c.Components.Config, c.Components.Logger)
	limits := newScopeLimits(c)
	requireAuth := middleware.RequireAuth(c.Tokens)

	auth := e.Group("/api/auth")
	{
		auth.GET("/status", h.Status, limits.read)   // public
		auth.POST("/setup", h.Setup, limits.auth)    // public, first run only
		auth.POST("/login", h.Login, limits.auth)    // public
		auth.POST("/change-password", h.ChangePassword, requireAuth, limits.auth)
		auth.POST("/logout", h.Logout, requireAuth, limits.read)
		auth.GET("/verify", h.Verify, requireAuth, limits.read)
	}
}
