package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/algoflow/algoflow/common/logger"
)

// Defaults applied when node data leaves fields empty
const (
	DefaultStrategy  = "AlgoFlow"
	DefaultPriceType = "MARKET"
	DefaultProduct   = "MIS"
	DefaultExchange  = "NSE"
	// Options orders carry overnight positions by default
	DefaultOptionsProduct = "NRML"
)

const apiPrefix = "/api/v1/"

// Client is a REST client for the brokerage gateway. One client is built
// per execution from the stored settings so credential changes apply to
// the next run.
type Client struct {
	host   string
	apiKey string
	http   *http.Client
	log    *logger.Logger
}

// ClientOpts configures a gateway client
type ClientOpts struct {
	Host    string
	APIKey  string
	Timeout time.Duration
	Logger  *logger.Logger
}

// NewClient creates a gateway client
func NewClient(opts ClientOpts) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		host:   strings.TrimRight(opts.Host, "/"),
		apiKey: opts.APIKey,
		http:   &http.Client{Timeout: timeout},
		log:    opts.Logger,
	}
}

// post sends one gateway call. The API key rides in the body per the
// gateway protocol. Remote and transport failures both come back as
// error envelopes.
func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any) Response {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["apikey"] = c.apiKey

	encoded, err := json.Marshal(body)
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+apiPrefix+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed", "endpoint", endpoint, "error", err)
		return errorResponse(fmt.Sprintf("gateway unreachable: %v", err))
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.log.Warn("gateway response decode failed", "endpoint", endpoint, "status_code", resp.StatusCode, "error", err)
		return errorResponse(fmt.Sprintf("invalid gateway response (HTTP %d)", resp.StatusCode))
	}

	out := ResponseFromMap(raw)

	// Some gateway errors come back with an HTTP error code and no
	// envelope status
	if out.Status == "" {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out.Status = "success"
		} else {
			out.Status = "error"
			if out.Message == "" {
				out.Message = fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode)
			}
		}
		raw["status"] = out.Status
	}

	c.log.Debug("gateway call", "endpoint", endpoint, "status", out.Status)
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// PlaceOrder submits a plain order
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) Response {
	return c.post(ctx, "placeorder", map[string]any{
		"strategy":           orDefault(p.Strategy, DefaultStrategy),
		"symbol":             p.Symbol,
		"exchange":           orDefault(p.Exchange, DefaultExchange),
		"action":             p.Action,
		"quantity":           p.Quantity,
		"pricetype":          orDefault(p.PriceType, DefaultPriceType),
		"product":            orDefault(p.Product, DefaultProduct),
		"price":              p.Price,
		"trigger_price":      p.TriggerPrice,
		"disclosed_quantity": p.DisclosedQuantity,
	})
}

// SmartOrder submits an order that sizes against the current position
func (c *Client) SmartOrder(ctx context.Context, p SmartOrderParams) Response {
	return c.post(ctx, "placesmartorder", map[string]any{
		"strategy":      orDefault(p.Strategy, DefaultStrategy),
		"symbol":        p.Symbol,
		"exchange":      orDefault(p.Exchange, DefaultExchange),
		"action":        p.Action,
		"quantity":      p.Quantity,
		"position_size": p.PositionSize,
		"pricetype":     orDefault(p.PriceType, DefaultPriceType),
		"product":       orDefault(p.Product, DefaultProduct),
		"price":         p.Price,
		"trigger_price": p.TriggerPrice,
	})
}

// OptionsOrder submits a single-leg options order
func (c *Client) OptionsOrder(ctx context.Context, p OptionsOrderParams) Response {
	return c.post(ctx, "optionsorder", map[string]any{
		"strategy":    orDefault(p.Strategy, DefaultStrategy),
		"underlying":  p.Underlying,
		"exchange":    p.Exchange,
		"expiry_date": p.ExpiryDate,
		"offset":      p.Offset,
		"option_type": p.OptionType,
		"action":      p.Action,
		"quantity":    p.Quantity,
		"pricetype":   orDefault(p.PriceType, DefaultPriceType),
		"product":     orDefault(p.Product, DefaultOptionsProduct),
		"splitsize":   p.SplitSize,
	})
}

// OptionsMultiOrder submits a multi-leg options order
func (c *Client) OptionsMultiOrder(ctx context.Context, p OptionsMultiOrderParams) Response {
	payload := map[string]any{
		"strategy":   orDefault(p.Strategy, DefaultStrategy),
		"underlying": p.Underlying,
		"exchange":   p.Exchange,
		"legs":       p.Legs,
		"pricetype":  orDefault(p.PriceType, DefaultPriceType),
		"product":    orDefault(p.Product, DefaultOptionsProduct),
	}
	if p.ExpiryDate != "" {
		payload["expiry_date"] = p.ExpiryDate
	}
	return c.post(ctx, "optionsmultiorder", payload)
}

// BasketOrder submits a batch of orders in one call. Orders pass through
// as the editor built them.
func (c *Client) BasketOrder(ctx context.Context, strategy string, orders []map[string]any) Response {
	return c.post(ctx, "basketorder", map[string]any{
		"strategy": orDefault(strategy, DefaultStrategy),
		"orders":   orders,
	})
}

// SplitOrder slices a large order into child orders
func (c *Client) SplitOrder(ctx context.Context, p SplitOrderParams) Response {
	return c.post(ctx, "splitorder", map[string]any{
		"strategy":      orDefault(p.Strategy, DefaultStrategy),
		"symbol":        p.Symbol,
		"exchange":      orDefault(p.Exchange, DefaultExchange),
		"action":        p.Action,
		"quantity":      p.Quantity,
		"splitsize":     p.SplitSize,
		"pricetype":     orDefault(p.PriceType, DefaultPriceType),
		"product":       orDefault(p.Product, DefaultProduct),
		"price":         p.Price,
		"trigger_price": p.TriggerPrice,
	})
}

// ModifyOrder rewrites an open order
func (c *Client) ModifyOrder(ctx context.Context, p ModifyOrderParams) Response {
	return c.post(ctx, "modifyorder", map[string]any{
		"strategy":      orDefault(p.Strategy, DefaultStrategy),
		"orderid":       p.OrderID,
		"symbol":        p.Symbol,
		"exchange":      orDefault(p.Exchange, DefaultExchange),
		"action":        p.Action,
		"quantity":      p.Quantity,
		"pricetype":     orDefault(p.PriceType, "LIMIT"),
		"product":       orDefault(p.Product, DefaultProduct),
		"price":         p.Price,
		"trigger_price": p.TriggerPrice,
	})
}

// CancelOrder cancels one order by id
func (c *Client) CancelOrder(ctx context.Context, orderID, strategy string) Response {
	return c.post(ctx, "cancelorder", map[string]any{
		"orderid":  orderID,
		"strategy": orDefault(strategy, DefaultStrategy),
	})
}

// CancelAllOrders cancels every open order for a strategy
func (c *Client) CancelAllOrders(ctx context.Context, strategy string) Response {
	return c.post(ctx, "cancelallorder", map[string]any{
		"strategy": orDefault(strategy, DefaultStrategy),
	})
}

// ClosePositions squares off all open positions for a strategy
func (c *Client) ClosePositions(ctx context.Context, strategy string) Response {
	return c.post(ctx, "closeposition", map[string]any{
		"strategy": orDefault(strategy, DefaultStrategy),
	})
}

// OrderStatus fetches the state of one order
func (c *Client) OrderStatus(ctx context.Context, orderID, strategy string) Response {
	return c.post(ctx, "orderstatus", map[string]any{
		"orderid":  orderID,
		"strategy": orDefault(strategy, DefaultStrategy),
	})
}

// OpenPosition returns the open quantity for one instrument
func (c *Client) OpenPosition(ctx context.Context, symbol, exchange, product string) Response {
	return c.post(ctx, "openposition", map[string]any{
		"strategy": DefaultStrategy,
		"symbol":   symbol,
		"exchange": orDefault(exchange, DefaultExchange),
		"product":  orDefault(product, DefaultProduct),
	})
}

// Quote returns the current quote for one instrument
func (c *Client) Quote(ctx context.Context, symbol, exchange string) Response {
	return c.post(ctx, "quotes", map[string]any{
		"symbol":   symbol,
		"exchange": orDefault(exchange, DefaultExchange),
	})
}

// MultiQuote returns quotes for several instruments in one call
func (c *Client) MultiQuote(ctx context.Context, symbols []SymbolRef) Response {
	return c.post(ctx, "multiquotes", map[string]any{
		"symbols": symbols,
	})
}

// Depth returns order book depth for one instrument
func (c *Client) Depth(ctx context.Context, symbol, exchange string) Response {
	return c.post(ctx, "depth", map[string]any{
		"symbol":   symbol,
		"exchange": orDefault(exchange, DefaultExchange),
	})
}

// History returns historical candles
func (c *Client) History(ctx context.Context, symbol, exchange, interval, startDate, endDate string) Response {
	return c.post(ctx, "history", map[string]any{
		"symbol":     symbol,
		"exchange":   orDefault(exchange, DefaultExchange),
		"interval":   interval,
		"start_date": startDate,
		"end_date":   endDate,
	})
}

// Expiry returns the expiry dates for an underlying's derivatives
func (c *Client) Expiry(ctx context.Context, symbol, exchange, instrumentType string) Response {
	return c.post(ctx, "expiry", map[string]any{
		"symbol":         symbol,
		"exchange":       exchange,
		"instrumenttype": orDefault(instrumentType, "options"),
	})
}

// OptionChain returns strikes around the spot for one expiry
func (c *Client) OptionChain(ctx context.Context, underlying, exchange, expiryDate string, strikeCount int) Response {
	payload := map[string]any{
		"underlying":  underlying,
		"exchange":    exchange,
		"expiry_date": expiryDate,
	}
	if strikeCount > 0 {
		payload["strike_count"] = strikeCount
	}
	return c.post(ctx, "optionchain", payload)
}

// OptionSymbol resolves a tradeable option symbol from underlying,
// expiry and strike offset
func (c *Client) OptionSymbol(ctx context.Context, underlying, exchange, expiryDate, offset, optionType string) Response {
	return c.post(ctx, "optionsymbol", map[string]any{
		"underlying":  underlying,
		"exchange":    exchange,
		"expiry_date": expiryDate,
		"offset":      offset,
		"option_type": optionType,
	})
}

// OptionGreeks returns greeks for one option contract
func (c *Client) OptionGreeks(ctx context.Context, symbol, exchange, underlyingSymbol, underlyingExchange string) Response {
	return c.post(ctx, "optiongreeks", map[string]any{
		"symbol":              symbol,
		"exchange":            exchange,
		"underlying_symbol":   underlyingSymbol,
		"underlying_exchange": underlyingExchange,
	})
}

// SyntheticFuture prices a synthetic future from the option chain
func (c *Client) SyntheticFuture(ctx context.Context, underlying, exchange, expiryDate string) Response {
	return c.post(ctx, "syntheticfuture", map[string]any{
		"underlying":  underlying,
		"exchange":    exchange,
		"expiry_date": expiryDate,
	})
}

// SymbolInfo returns contract metadata for one symbol
func (c *Client) SymbolInfo(ctx context.Context, symbol, exchange string) Response {
	return c.post(ctx, "symbol", map[string]any{
		"symbol":   symbol,
		"exchange": orDefault(exchange, DefaultExchange),
	})
}

// Search finds symbols matching a query
func (c *Client) Search(ctx context.Context, query, exchange string) Response {
	payload := map[string]any{"query": query}
	if exchange != "" {
		payload["exchange"] = exchange
	}
	return c.post(ctx, "search", payload)
}

// Funds returns account margin and cash
func (c *Client) Funds(ctx context.Context) Response {
	return c.post(ctx, "funds", map[string]any{})
}

// Holdings returns demat holdings
func (c *Client) Holdings(ctx context.Context) Response {
	return c.post(ctx, "holdings", map[string]any{})
}

// PositionBook returns all open positions
func (c *Client) PositionBook(ctx context.Context) Response {
	return c.post(ctx, "positionbook", map[string]any{})
}

// TradeBook returns today's fills
func (c *Client) TradeBook(ctx context.Context) Response {
	return c.post(ctx, "tradebook", map[string]any{})
}

// OrderBook returns today's orders
func (c *Client) OrderBook(ctx context.Context) Response {
	return c.post(ctx, "orderbook", map[string]any{})
}

// Margin estimates the margin requirement for a prospective order
func (c *Client) Margin(ctx context.Context, p OrderParams) Response {
	return c.post(ctx, "margin", map[string]any{
		"symbol":    p.Symbol,
		"exchange":  orDefault(p.Exchange, DefaultExchange),
		"action":    p.Action,
		"quantity":  p.Quantity,
		"pricetype": orDefault(p.PriceType, DefaultPriceType),
		"product":   orDefault(p.Product, DefaultProduct),
		"price":     p.Price,
	})
}

// Holidays returns the exchange holiday calendar for a year
func (c *Client) Holidays(ctx context.Context, year int) Response {
	return c.post(ctx, "holidays", map[string]any{
		"year": year,
	})
}

// Timings returns market session timings for a date
func (c *Client) Timings(ctx context.Context, date string) Response {
	return c.post(ctx, "timings", map[string]any{
		"date": date,
	})
}

// Telegram relays a notification through the gateway's Telegram bridge
func (c *Client) Telegram(ctx context.Context, username, message string) Response {
	return c.post(ctx, "telegram", map[string]any{
		"username": username,
		"message":  message,
	})
}

// AnalyzerStatus reports whether the gateway is in analyze (paper) mode
func (c *Client) AnalyzerStatus(ctx context.Context) Response {
	return c.post(ctx, "analyzerstatus", map[string]any{})
}

// AnalyzerToggle switches the gateway between live and analyze mode
func (c *Client) AnalyzerToggle(ctx context.Context, mode bool) Response {
	return c.post(ctx, "analyzertoggle", map[string]any{
		"mode": mode,
	})
}

// Ping verifies connectivity and credentials by fetching funds
func (c *Client) Ping(ctx context.Context) Response {
	return c.Funds(ctx)
}
