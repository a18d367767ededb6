package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/handlers"
	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
)

// RegisterSymbolRoutes registers editor symbol lookup routes
func RegisterSymbolRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSymbolsHandler(c.SettingsRepo, c.Cipher, c.Cache, c.Components.Logger)
	limits := newScopeLimits(c)

	symbols := e.Group("/api/symbols")
	symbols.Use(middleware.RequireAuth(c.Tokens))
	{
		symbols.GET("/search", h.Search, limits.read)
		symbols.GET("/quotes", h.Quotes, limits.read)
		symbols.GET("/greeks", h.Greeks, limits.read)
	}
}
