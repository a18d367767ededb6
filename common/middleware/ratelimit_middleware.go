package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/common/ratelimit"
)

// ScopeRateLimit applies a scope's per-client limit keyed by remote IP.
// Redis errors fail open so the API stays available when Redis is down.
func ScopeRateLimit(limiter *ratelimit.RateLimiter, scope ratelimit.Scope, enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled || limiter == nil {
				return next(c)
			}

			result, err := limiter.CheckScope(c.Request().Context(), scope, c.RealIP())
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please wait before trying again.",
					"details": map[string]interface{}{
						"scope":               scope.Name,
						"limit":               result.Limit,
						"window":              "60 seconds",
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
