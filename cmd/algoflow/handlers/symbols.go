package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/common/cache"
	"github.com/algoflow/algoflow/common/crypto"
	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/repository"
)

// searchCacheTTL bounds staleness of symbol search results. The symbol
// master changes at most daily, so a short TTL keeps the editor snappy
// without a stale-entry problem.
const searchCacheTTL = 5 * time.Minute

// SymbolsHandler proxies symbol lookups to the gateway for the editor
type SymbolsHandler struct {
	settings *repository.SettingsRepository
	cipher   *crypto.Cipher
	cache    cache.Cache
	log      *logger.Logger
}

// NewSymbolsHandler creates a new symbols handler
func NewSymbolsHandler(settings *repository.SettingsRepository, cipher *crypto.Cipher, cache cache.Cache, log *logger.Logger) *SymbolsHandler {
	return &SymbolsHandler{
		settings: settings,
		cipher:   cipher,
		cache:    cache,
		log:      log,
	}
}

// Search looks up symbols matching a query, with cached results
// GET /api/symbols/search?query=&exchange=
func (h *SymbolsHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()

	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "query is required",
		})
	}
	exchange := c.QueryParam("exchange")
	if exchange == "" {
		exchange = "NSE"
	}

	cacheKey := fmt.Sprintf("symbols:search:%s:%s", exchange, strings.ToUpper(query))
	if cached, ok, err := h.cache.Get(ctx, cacheKey); err == nil && ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	client, ok := h.gatewayClient(c)
	if !ok {
		return nil
	}

	resp := client.Search(ctx, query, exchange)
	body := resp.AsMap()
	if resp.OK() {
		if encoded, err := json.Marshal(body); err == nil {
			// Cache failures only cost the next lookup a round-trip
			_ = h.cache.Set(ctx, cacheKey, encoded, searchCacheTTL)
		}
	}
	return c.JSON(http.StatusOK, body)
}

// Quotes returns a live quote for one symbol
// GET /api/symbols/quotes?symbol=&exchange=
func (h *SymbolsHandler) Quotes(c echo.Context) error {
	symbol := strings.TrimSpace(c.QueryParam("symbol"))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "symbol is required",
		})
	}
	exchange := c.QueryParam("exchange")
	if exchange == "" {
		exchange = "NSE"
	}

	client, ok := h.gatewayClient(c)
	if !ok {
		return nil
	}

	resp := client.Quote(c.Request().Context(), symbol, exchange)
	return c.JSON(http.StatusOK, resp.AsMap())
}

// Greeks returns option greeks for one contract
// GET /api/symbols/greeks?symbol=&exchange=&underlying=&underlying_exchange=
func (h *SymbolsHandler) Greeks(c echo.Context) error {
	symbol := strings.TrimSpace(c.QueryParam("symbol"))
	underlying := strings.TrimSpace(c.QueryParam("underlying"))
	if symbol == "" || underlying == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "symbol and underlying are required",
		})
	}
	exchange := c.QueryParam("exchange")
	if exchange == "" {
		exchange = "NFO"
	}
	underlyingExchange := c.QueryParam("underlying_exchange")
	if underlyingExchange == "" {
		underlyingExchange = "NSE_INDEX"
	}

	client, ok := h.gatewayClient(c)
	if !ok {
		return nil
	}

	resp := client.OptionGreeks(c.Request().Context(), symbol, exchange, underlying, underlyingExchange)
	return c.JSON(http.StatusOK, resp.AsMap())
}

func (h *SymbolsHandler) gatewayClient(c echo.Context) (*gateway.Client, bool) {
	return gatewayFromSettings(c, h.settings, h.cipher, h.log)
}
