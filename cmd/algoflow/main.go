package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	"github.com/algoflow/algoflow/cmd/algoflow/routes"
	"github.com/algoflow/algoflow/common/bootstrap"
	"github.com/algoflow/algoflow/common/db"
	"github.com/algoflow/algoflow/common/metrics"
	"github.com/algoflow/algoflow/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, redis, telemetry)
	components, err := bootstrap.Setup(ctx, "algoflow",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return database.InitSchema(ctx)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap algoflow: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	logRuntimeEnvironment(components)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Start event fanout and schedules before accepting traffic
	startBackground(ctx, serviceContainer)

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e, serviceContainer)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server
	startServer(e, serviceContainer)
}

// logRuntimeEnvironment records the host environment once at startup
func logRuntimeEnvironment(components *bootstrap.Components) {
	info := metrics.CaptureSystem()
	components.Logger.Info("runtime environment",
		"host", info.Hostname,
		"os", info.OSVersion,
		"arch", info.Arch,
		"cpus", info.CPUs,
		"memory_mb", info.MemoryMB,
		"go", info.GoVersion,
		"container", info.ContainerRuntime,
	)
}

// startBackground launches the WebSocket hub, the Redis event subscriber
// and the scheduler, then re-arms schedules for workflows that were
// active before the last restart.
func startBackground(ctx context.Context, c *container.Container) {
	go c.Hub.Run()
	go c.Subscriber.Start(ctx)

	c.Scheduler.Start()
	if err := c.Scheduler.Rehydrate(ctx); err != nil {
		c.Components.Logger.Error("failed to rehydrate schedules", "error", err)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(503, map[string]string{
				"status":  "degraded",
				"service": "algoflow",
				"error":   err.Error(),
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "algoflow",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterAuthRoutes(e, serviceContainer)
	routes.RegisterWorkflowRoutes(e, serviceContainer)
	routes.RegisterSettingsRoutes(e, serviceContainer)
	routes.RegisterSymbolRoutes(e, serviceContainer)
	routes.RegisterWebhookRoutes(e, serviceContainer)
	routes.RegisterWSRoutes(e, serviceContainer)
}

// startServer runs the HTTP server until shutdown, then releases the
// scheduler and the market data stream
func startServer(e *echo.Echo, c *container.Container) {
	srv := server.New("algoflow", c.Components.Config.Service.Port, e, c.Components.Logger)
	if err := srv.Start(); err != nil {
		c.Components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	c.Scheduler.Stop()
	c.Stream.Disconnect()
}
