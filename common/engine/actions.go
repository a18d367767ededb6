package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
)

func (r *Runner) orderParams(data map[string]any) gateway.OrderParams {
	return gateway.OrderParams{
		Strategy:     r.ctx.StringField(data, "strategy", ""),
		Symbol:       r.ctx.StringField(data, "symbol", ""),
		Exchange:     r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		Action:       strings.ToUpper(r.ctx.StringField(data, "action", "BUY")),
		Quantity:     r.ctx.IntField(data, "quantity", 1),
		PriceType:    r.ctx.StringField(data, "priceType", gateway.DefaultPriceType),
		Product:      r.ctx.StringField(data, "product", gateway.DefaultProduct),
		Price:        r.ctx.FloatField(data, "price", 0),
		TriggerPrice: r.ctx.FloatField(data, "triggerPrice", 0),
	}
}

func (r *Runner) placeOrder(ctx context.Context, data map[string]any) Result {
	p := r.orderParams(data)
	r.logs.Append("info", fmt.Sprintf("Placing order: %s %s qty=%d", p.Symbol, p.Action, p.Quantity))

	resp := r.gw.PlaceOrder(ctx, p)
	r.logResult("Order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) smartOrder(ctx context.Context, data map[string]any) Result {
	p := gateway.SmartOrderParams{
		OrderParams:  r.orderParams(data),
		PositionSize: r.ctx.IntField(data, "positionSize", 0),
	}
	r.logs.Append("info", fmt.Sprintf("Placing smart order: %s %s qty=%d position_size=%d",
		p.Symbol, p.Action, p.Quantity, p.PositionSize))

	resp := r.gw.SmartOrder(ctx, p)
	r.logResult("Smart order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) basketOrder(ctx context.Context, data map[string]any) Result {
	raw, _ := data["orders"].([]any)
	orders := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			orders = append(orders, m)
		}
	}
	if len(orders) == 0 {
		return errorResult("basket order has no orders")
	}

	strategy := r.ctx.StringField(data, "strategy", gateway.DefaultStrategy)
	r.logs.Append("info", fmt.Sprintf("Placing basket of %d orders", len(orders)))

	resp := r.gw.BasketOrder(ctx, strategy, orders)
	r.logResult("Basket order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) splitOrder(ctx context.Context, data map[string]any) Result {
	p := gateway.SplitOrderParams{
		Strategy:     r.ctx.StringField(data, "strategy", ""),
		Symbol:       r.ctx.StringField(data, "symbol", ""),
		Exchange:     r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		Action:       strings.ToUpper(r.ctx.StringField(data, "action", "BUY")),
		Quantity:     r.ctx.IntField(data, "quantity", 1),
		SplitSize:    r.ctx.IntField(data, "splitSize", 10),
		PriceType:    r.ctx.StringField(data, "priceType", gateway.DefaultPriceType),
		Product:      r.ctx.StringField(data, "product", gateway.DefaultProduct),
		Price:        r.ctx.FloatField(data, "price", 0),
		TriggerPrice: r.ctx.FloatField(data, "triggerPrice", 0),
	}
	r.logs.Append("info", fmt.Sprintf("Placing split order: %s qty=%d split_size=%d",
		p.Symbol, p.Quantity, p.SplitSize))

	resp := r.gw.SplitOrder(ctx, p)
	r.logResult("Split order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) modifyOrder(ctx context.Context, data map[string]any) Result {
	p := gateway.ModifyOrderParams{
		Strategy:     r.ctx.StringField(data, "strategy", ""),
		OrderID:      r.ctx.StringField(data, "orderId", ""),
		Symbol:       r.ctx.StringField(data, "symbol", ""),
		Exchange:     r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		Action:       strings.ToUpper(r.ctx.StringField(data, "action", "BUY")),
		Quantity:     r.ctx.IntField(data, "quantity", 1),
		PriceType:    r.ctx.StringField(data, "priceType", "LIMIT"),
		Product:      r.ctx.StringField(data, "product", gateway.DefaultProduct),
		Price:        r.ctx.FloatField(data, "price", 0),
		TriggerPrice: r.ctx.FloatField(data, "triggerPrice", 0),
	}
	if p.OrderID == "" {
		return errorResult("modify order requires an order id")
	}
	r.logs.Append("info", "Modifying order: "+p.OrderID)

	resp := r.gw.ModifyOrder(ctx, p)
	r.logResult("Modify result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) cancelOrder(ctx context.Context, data map[string]any) Result {
	orderID := r.ctx.StringField(data, "orderId", "")
	if orderID == "" {
		return errorResult("cancel order requires an order id")
	}
	r.logs.Append("info", "Cancelling order: "+orderID)

	resp := r.gw.CancelOrder(ctx, orderID, r.ctx.StringField(data, "strategy", gateway.DefaultStrategy))
	r.logResult("Cancel result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) cancelAllOrders(ctx context.Context, data map[string]any) Result {
	r.logs.Append("info", "Cancelling all open orders")

	resp := r.gw.CancelAllOrders(ctx, r.ctx.StringField(data, "strategy", gateway.DefaultStrategy))
	r.logResult("Cancel all result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) closePositions(ctx context.Context, data map[string]any) Result {
	r.logs.Append("info", "Closing all open positions")

	resp := r.gw.ClosePositions(ctx, r.ctx.StringField(data, "strategy", gateway.DefaultStrategy))
	r.logResult("Close positions result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) telegramAlert(ctx context.Context, data map[string]any) Result {
	username := r.ctx.StringField(data, "username", "")
	message := r.ctx.StringField(data, "message", "")
	if username == "" {
		return errorResult("telegram alert requires a username")
	}
	r.logs.Append("info", "Sending telegram alert to "+username)

	resp := r.gw.Telegram(ctx, username, message)
	r.logResult("Telegram result", resp)
	return fromResponse(resp)
}

func (r *Runner) logMessage(data map[string]any) Result {
	message := r.ctx.StringField(data, "message", "")
	level := r.ctx.StringField(data, "level", "info")
	switch level {
	case "info", "warning", "error", "debug":
	default:
		level = "info"
	}
	r.logs.Append(level, "[LOG] "+message)
	return Result{"status": "success", "message": message, "level": level}
}

func (r *Runner) httpRequest(ctx context.Context, data map[string]any) Result {
	url := r.ctx.StringField(data, "url", "")
	if url == "" {
		return errorResult("http request requires a url")
	}
	if err := validateOutboundURL(url); err != nil {
		r.logs.Append("error", "Blocked http request: "+err.Error())
		return errorResult(err.Error())
	}
	method := strings.ToUpper(r.ctx.StringField(data, "method", http.MethodGet))
	timeout := time.Duration(r.ctx.IntField(data, "timeout", 30)) * time.Second

	var body io.Reader
	if raw := r.ctx.StringField(data, "body", ""); raw != "" {
		body = bytes.NewBufferString(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return errorResult("failed to build http request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := data["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, r.ctx.Interpolate(Stringify(v)))
		}
	}

	r.logs.Append("info", fmt.Sprintf("HTTP %s %s", method, url))
	started := r.now()

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logs.Append("error", "HTTP request failed: "+err.Error())
		return errorResult("http request failed: " + err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult("failed to read http response: " + err.Error())
	}

	var parsed any
	if json.Valid(raw) {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = string(raw)
		}
	} else {
		parsed = string(raw)
	}

	result := Result{
		"status":      "success",
		"status_code": resp.StatusCode,
		"body":        parsed,
		"duration_ms": r.now().Sub(started).Milliseconds(),
	}
	if resp.StatusCode >= 400 {
		result["status"] = "error"
		result["message"] = fmt.Sprintf("http status %d", resp.StatusCode)
	}
	r.logs.Append("info", fmt.Sprintf("HTTP response: %d", resp.StatusCode))
	r.storeOutput(data, map[string]any(result))
	return result
}
