package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/common/crypto"
	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/repository"
)

// SettingsHandler handles gateway configuration
type SettingsHandler struct {
	settings *repository.SettingsRepository
	cipher   *crypto.Cipher
	log      *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *repository.SettingsRepository, cipher *crypto.Cipher, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		cipher:   cipher,
		log:      log,
	}
}

type settingsUpdateRequest struct {
	GatewayAPIKey string `json:"gateway_api_key"`
	GatewayHost   string `json:"gateway_host"`
	GatewayWSURL  string `json:"gateway_ws_url"`
}

// Get returns the stored gateway coordinates. The API key itself is
// never echoed, only whether one exists.
// GET /api/settings
func (h *SettingsHandler) Get(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context())
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"gateway_host":   settings.GatewayHost,
		"gateway_ws_url": settings.GatewayWSURL,
		"is_configured":  settings.HasAPIKey(),
		"has_api_key":    settings.HasAPIKey(),
	})
}

// Update stores gateway coordinates. Fields left empty keep their stored
// values; a new API key is encrypted before it is written.
// PUT /api/settings
func (h *SettingsHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req settingsUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	current, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}

	host := current.GatewayHost
	if req.GatewayHost != "" {
		host = req.GatewayHost
	}
	wsURL := current.GatewayWSURL
	if req.GatewayWSURL != "" {
		wsURL = req.GatewayWSURL
	}

	encryptedKey := ""
	if req.GatewayAPIKey != "" {
		encryptedKey, err = h.cipher.Encrypt(req.GatewayAPIKey)
		if err != nil {
			h.log.Error("failed to encrypt gateway key", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": "failed to store settings",
			})
		}
	}

	if err := h.settings.UpdateGateway(ctx, encryptedKey, host, wsURL); err != nil {
		h.log.Error("failed to update settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store settings",
		})
	}

	h.log.Info("gateway settings updated", "host", host)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Settings updated successfully",
	})
}

// Analyzer reports whether the gateway is in analyze (paper trading) mode
// GET /api/settings/analyzer
func (h *SettingsHandler) Analyzer(c echo.Context) error {
	client, ok := gatewayFromSettings(c, h.settings, h.cipher, h.log)
	if !ok {
		return nil
	}

	resp := client.AnalyzerStatus(c.Request().Context())
	return c.JSON(http.StatusOK, resp.AsMap())
}

type analyzerToggleRequest struct {
	Mode bool `json:"mode"`
}

// AnalyzerToggle switches the gateway between live and analyze mode.
// Analyze mode routes orders to the gateway's simulator instead of the
// broker, so flipping it is logged.
// POST /api/settings/analyzer
func (h *SettingsHandler) AnalyzerToggle(c echo.Context) error {
	var req analyzerToggleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	client, ok := gatewayFromSettings(c, h.settings, h.cipher, h.log)
	if !ok {
		return nil
	}

	resp := client.AnalyzerToggle(c.Request().Context(), req.Mode)
	if resp.OK() {
		h.log.Info("analyzer mode toggled", "analyze", req.Mode)
	}
	return c.JSON(http.StatusOK, resp.AsMap())
}

// gatewayFromSettings builds a gateway client from the stored settings.
// When it returns false the error response has already been written.
func gatewayFromSettings(c echo.Context, settings *repository.SettingsRepository, cipher *crypto.Cipher, log *logger.Logger) (*gateway.Client, bool) {
	ctx := c.Request().Context()

	stored, err := settings.Get(ctx)
	if err != nil {
		log.Error("failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
		return nil, false
	}
	if !stored.HasAPIKey() {
		c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "gateway not configured",
		})
		return nil, false
	}

	apiKey, err := cipher.Decrypt(stored.GatewayAPIKey)
	if err != nil {
		log.Error("failed to decrypt gateway key", "error", err)
		c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to decrypt gateway credentials",
		})
		return nil, false
	}

	return gateway.NewClient(gateway.ClientOpts{
		Host:   stored.GatewayHost,
		APIKey: apiKey,
		Logger: log,
	}), true
}

// Test pings the gateway with the stored credentials
// POST /api/settings/test
func (h *SettingsHandler) Test(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load settings",
		})
	}
	if !settings.HasAPIKey() {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "API key not configured",
		})
	}

	apiKey, err := h.cipher.Decrypt(settings.GatewayAPIKey)
	if err != nil {
		h.log.Error("failed to decrypt gateway key", "error", err)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "failed to decrypt gateway credentials",
		})
	}

	client := gateway.NewClient(gateway.ClientOpts{
		Host:   settings.GatewayHost,
		APIKey: apiKey,
		Logger: h.log,
	})

	resp := client.Ping(ctx)
	if !resp.OK() {
		message := resp.Message
		if message == "" {
			message = "Connection failed"
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"message": message,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connection successful",
		"data":    resp.Data,
	})
}
