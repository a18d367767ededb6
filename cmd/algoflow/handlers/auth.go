package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
	"github.com/algoflow/algoflow/common/config"
	"github.com/algoflow/algoflow/common/crypto"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/repository"
)

// AuthHandler handles single-admin authentication
type AuthHandler struct {
	settings *repository.SettingsRepository
	tokens   *middleware.TokenManager
	cfg      *config.Config
	log      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(settings *repository.SettingsRepository, tokens *middleware.TokenManager, cfg *config.Config, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		settings: settings,
		tokens:   tokens,
		cfg:      cfg,
		log:      log,
	}
}

type setupRequest struct {
	Password string `json:"password"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Status reports whether first-run setup has happened
// GET /api/auth/status
func (h *AuthHandler) Status(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context())
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"is_setup_complete": settings.SetupComplete,
		// The frontend checks token validity through /api/auth/verify
		"is_authenticated": false,
	})
}

// Setup stores the initial admin password and returns a session token
// POST /api/auth/setup
func (h *AuthHandler) Setup(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}
	if settings.SetupComplete {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error": "setup already complete, use login instead",
		})
	}

	var req setupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "password must be at least 8 characters",
		})
	}

	hash, err := crypto.HashPassword(req.Password, h.cfg.Auth.BcryptCost)
	if err != nil {
		h.log.Error("failed to hash password", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store password",
		})
	}
	if err := h.settings.SetCredentials(ctx, h.cfg.Auth.AdminUsername, hash); err != nil {
		h.log.Error("failed to store credentials", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store password",
		})
	}

	h.log.Info("admin setup complete", "username", h.cfg.Auth.AdminUsername)
	return h.tokenResponse(c, h.cfg.Auth.AdminUsername)
}

// Login exchanges the admin password for a session token
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}
	if !settings.SetupComplete || settings.AdminPasswordHash == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "setup not complete, set the admin password first",
		})
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if !crypto.CheckPassword(settings.AdminPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "incorrect password",
		})
	}

	return h.tokenResponse(c, settings.AdminUsername)
}

// ChangePassword rotates the admin password after verifying the current one
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if !crypto.CheckPassword(settings.AdminPasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "current password is incorrect",
		})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "password must be at least 8 characters",
		})
	}

	hash, err := crypto.HashPassword(req.NewPassword, h.cfg.Auth.BcryptCost)
	if err != nil {
		h.log.Error("failed to hash password", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store password",
		})
	}
	if err := h.settings.SetPasswordHash(ctx, hash); err != nil {
		h.log.Error("failed to store password hash", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store password",
		})
	}

	h.log.Info("admin password changed")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Password changed successfully",
	})
}

// Logout acknowledges a logout; tokens are stateless so the client just
// discards its copy
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Logged out successfully",
	})
}

// Verify confirms the presented token is still valid
// GET /api/auth/verify
func (h *AuthHandler) Verify(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Token is valid",
	})
}

// tokenResponse issues a token for the username and writes the standard
// token envelope
func (h *AuthHandler) tokenResponse(c echo.Context, username string) error {
	token, expires, err := h.tokens.Issue(username)
	if err != nil {
		h.log.Error("failed to issue token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to issue token",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(h.cfg.Auth.TokenTTL.Seconds()),
		"expires_at":   expires.UTC(),
	})
}
