package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/container"
	commonmw "github.com/algoflow/algoflow/common/middleware"
	"github.com/algoflow/algoflow/common/ratelimit"
)

// scopeLimits bundles the per-scope rate limit middlewares so the route
// groups share one construction site
type scopeLimits struct {
	auth    echo.MiddlewareFunc
	execute echo.MiddlewareFunc
	mutate  echo.MiddlewareFunc
	read    echo.MiddlewareFunc
}

func newScopeLimits(c *container.Container) scopeLimits {
	cfg := c.Components.Config.RateLimit
	return scopeLimits{
		auth:    commonmw.ScopeRateLimit(c.Limiter, ratelimit.ScopeAuth.WithLimit(cfg.Auth), cfg.Enabled),
		execute: commonmw.ScopeRateLimit(c.Limiter, ratelimit.ScopeExecute.WithLimit(cfg.Execute), cfg.Enabled),
		mutate:  commonmw.ScopeRateLimit(c.Limiter, ratelimit.ScopeMutate.WithLimit(cfg.Mutate), cfg.Enabled),
		read:    commonmw.ScopeRateLimit(c.Limiter, ratelimit.ScopeRead.WithLimit(cfg.Read), cfg.Enabled),
	}
}
