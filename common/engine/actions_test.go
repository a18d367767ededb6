package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/algoflow/algoflow/common/gateway"
)

func TestPlaceOrderParams(t *testing.T) {
	gw := newFakeGateway().respond("PlaceOrder", gateway.Response{
		Status: "success",
		Data:   map[string]any{"orderid": "24072500001"},
	})
	r, ectx, _ := newTestRunner(gw, &fakeStream{})
	ectx.SetVariable("sym", "RELIANCE")

	result := r.placeOrder(context.Background(), map[string]any{
		"symbol":         "{{sym}}",
		"action":         "sell",
		"quantity":       "3",
		"price":          2500.5,
		"priceType":      "LIMIT",
		"outputVariable": "order",
	})
	if !result.OK() {
		t.Fatalf("place order failed: %v", result)
	}

	p := gw.params["PlaceOrder"].(gateway.OrderParams)
	if p.Symbol != "RELIANCE" {
		t.Errorf("symbol should interpolate, got %q", p.Symbol)
	}
	if p.Action != "SELL" {
		t.Errorf("action should be uppercased, got %q", p.Action)
	}
	if p.Quantity != 3 {
		t.Errorf("string quantity should coerce, got %d", p.Quantity)
	}
	if p.Price != 2500.5 || p.PriceType != "LIMIT" {
		t.Errorf("price fields: %+v", p)
	}
	if p.Exchange != gateway.DefaultExchange || p.Product != gateway.DefaultProduct {
		t.Errorf("defaults: %+v", p)
	}

	stored, ok := ectx.GetVariable("order")
	if !ok {
		t.Fatalf("outputVariable should capture the envelope")
	}
	if m := stored.(map[string]any); m["status"] != "success" {
		t.Errorf("stored envelope: %v", m)
	}
}

func TestSmartOrderCarriesPositionSize(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	r.smartOrder(context.Background(), map[string]any{
		"symbol":       "INFY",
		"positionSize": 100.0,
	})

	p := gw.params["SmartOrder"].(gateway.SmartOrderParams)
	if p.PositionSize != 100 {
		t.Errorf("got position size %d, want 100", p.PositionSize)
	}
}

func TestBasketOrderRequiresOrders(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	if result := r.basketOrder(context.Background(), map[string]any{}); result.OK() {
		t.Fatalf("empty basket should fail")
	}
	if gw.called("BasketOrder") {
		t.Errorf("empty basket should not reach the gateway")
	}
}

func TestBasketOrderFiltersJunkEntries(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	result := r.basketOrder(context.Background(), map[string]any{
		"orders": []any{
			map[string]any{"symbol": "INFY", "action": "BUY"},
			"not an order",
			map[string]any{"symbol": "TCS", "action": "SELL"},
		},
	})
	if !result.OK() {
		t.Fatalf("basket failed: %v", result)
	}

	sent := gw.params["BasketOrder"].(map[string]any)
	if sent["strategy"] != gateway.DefaultStrategy {
		t.Errorf("strategy should default, got %v", sent["strategy"])
	}
	if orders := sent["orders"].([]map[string]any); len(orders) != 2 {
		t.Errorf("junk entries should drop, got %d orders", len(orders))
	}
}

func TestSplitOrderDefaults(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	r.splitOrder(context.Background(), map[string]any{
		"symbol":   "NIFTY24JUL25000CE",
		"quantity": 500.0,
	})

	p := gw.params["SplitOrder"].(gateway.SplitOrderParams)
	if p.SplitSize != 10 {
		t.Errorf("split size should default to 10, got %d", p.SplitSize)
	}
	if p.Quantity != 500 {
		t.Errorf("got quantity %d, want 500", p.Quantity)
	}
}

func TestModifyOrderRequiresID(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	if result := r.modifyOrder(context.Background(), map[string]any{"price": 100.0}); result.OK() {
		t.Fatalf("modify without an id should fail")
	}
	if gw.called("ModifyOrder") {
		t.Errorf("modify without an id should not reach the gateway")
	}

	r.modifyOrder(context.Background(), map[string]any{
		"orderId": "24072500001",
		"price":   101.5,
	})
	p := gw.params["ModifyOrder"].(gateway.ModifyOrderParams)
	if p.OrderID != "24072500001" {
		t.Errorf("got order id %q", p.OrderID)
	}
	if p.PriceType != "LIMIT" {
		t.Errorf("modify should default to LIMIT, got %q", p.PriceType)
	}
}

func TestCancelOrderRequiresID(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	if result := r.cancelOrder(context.Background(), map[string]any{}); result.OK() {
		t.Fatalf("cancel without an id should fail")
	}

	r.cancelOrder(context.Background(), map[string]any{"orderId": "24072500002"})
	sent := gw.params["CancelOrder"].(map[string]any)
	if sent["orderid"] != "24072500002" || sent["strategy"] != gateway.DefaultStrategy {
		t.Errorf("cancel params: %v", sent)
	}
}

func TestCancelAllAndClosePositions(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	r.cancelAllOrders(context.Background(), map[string]any{"strategy": "scalper"})
	if gw.params["CancelAllOrders"] != "scalper" {
		t.Errorf("cancel all strategy: %v", gw.params["CancelAllOrders"])
	}

	r.closePositions(context.Background(), map[string]any{})
	if gw.params["ClosePositions"] != gateway.DefaultStrategy {
		t.Errorf("close positions strategy should default, got %v", gw.params["ClosePositions"])
	}
}

func TestTelegramAlertRequiresUsername(t *testing.T) {
	gw := newFakeGateway()
	r, ectx, _ := newTestRunner(gw, &fakeStream{})

	if result := r.telegramAlert(context.Background(), map[string]any{"message": "hi"}); result.OK() {
		t.Fatalf("alert without a username should fail")
	}
	if gw.called("Telegram") {
		t.Errorf("alert without a username should not reach the gateway")
	}

	ectx.SetVariable("ltp", 2500.0)
	r.telegramAlert(context.Background(), map[string]any{
		"username": "trader1",
		"message":  "RELIANCE at {{ltp}}",
	})
	sent := gw.params["Telegram"].(map[string]any)
	if sent["message"] != "RELIANCE at 2500" {
		t.Errorf("message should interpolate, got %v", sent["message"])
	}
}

func TestLogMessage(t *testing.T) {
	r, ectx, logs := newTestRunner(newFakeGateway(), &fakeStream{})
	ectx.SetVariable("qty", 75.0)

	result := r.logMessage(map[string]any{
		"message": "bought {{qty}}",
		"level":   "warning",
	})
	if !result.OK() {
		t.Fatalf("log failed: %v", result)
	}
	if result["level"] != "warning" {
		t.Errorf("got level %v", result["level"])
	}
	if !hasLogContaining(logs, "[LOG] bought 75") {
		t.Errorf("entry should interpolate and carry the log prefix: %v", logs.Entries())
	}

	// unknown levels fall back to info
	result = r.logMessage(map[string]any{"message": "x", "level": "verbose"})
	if result["level"] != "info" {
		t.Errorf("unknown level should fall back to info, got %v", result["level"])
	}
}

func TestHTTPRequest(t *testing.T) {
	var gotMethod, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		gotToken = req.Header.Get("X-Token")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	r, ectx, _ := newTestRunner(newFakeGateway(), &fakeStream{})
	ectx.SetVariable("token", "abc123")

	result := r.httpRequest(context.Background(), map[string]any{
		"url":            srv.URL,
		"headers":        map[string]any{"X-Token": "{{token}}"},
		"outputVariable": "resp",
	})
	if !result.OK() {
		t.Fatalf("http request failed: %v", result)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method should default to GET, got %s", gotMethod)
	}
	if gotToken != "abc123" {
		t.Errorf("headers should interpolate, got %q", gotToken)
	}
	if result["status_code"] != 200 {
		t.Errorf("got status_code %v", result["status_code"])
	}
	body, ok := result["body"].(map[string]any)
	if !ok || body["ok"] != true {
		t.Errorf("JSON body should decode, got %v", result["body"])
	}
	if _, ok := result["duration_ms"].(int64); !ok {
		t.Errorf("duration_ms should be recorded, got %T", result["duration_ms"])
	}
	if _, ok := ectx.GetVariable("resp"); !ok {
		t.Errorf("outputVariable should capture the response")
	}
}

func TestHTTPRequestPostsInterpolatedBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	r, ectx, _ := newTestRunner(newFakeGateway(), &fakeStream{})
	ectx.SetVariable("qty", 5.0)

	result := r.httpRequest(context.Background(), map[string]any{
		"url":    srv.URL,
		"method": "post",
		"body":   `{"qty": {{qty}}}`,
	})
	if !result.OK() {
		t.Fatalf("http request failed: %v", result)
	}
	if gotBody != `{"qty": 5}` {
		t.Errorf("body should interpolate, got %q", gotBody)
	}
	if result["status_code"] != 201 {
		t.Errorf("got status_code %v", result["status_code"])
	}
}

func TestHTTPRequestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, _, _ := newTestRunner(newFakeGateway(), &fakeStream{})

	result := r.httpRequest(context.Background(), map[string]any{"url": srv.URL})
	if result.OK() {
		t.Fatalf("4xx/5xx should become an error envelope, got %v", result)
	}
	if result["status_code"] != 503 {
		t.Errorf("got status_code %v", result["status_code"])
	}
	if result.Message() != "http status 503" {
		t.Errorf("got message %q", result.Message())
	}
	// non-JSON bodies come through as plain strings
	if body, ok := result["body"].(string); !ok || body == "" {
		t.Errorf("plain text body should survive, got %v", result["body"])
	}
}

func TestHTTPRequestBlocksUnsafeURLs(t *testing.T) {
	r, _, logs := newTestRunner(newFakeGateway(), &fakeStream{})

	if result := r.httpRequest(context.Background(), map[string]any{}); result.OK() {
		t.Fatalf("missing url should fail")
	}

	result := r.httpRequest(context.Background(), map[string]any{"url": "file:///etc/passwd"})
	if result.OK() {
		t.Fatalf("file scheme should be blocked")
	}
	if !hasLogContaining(logs, "Blocked http request") {
		t.Errorf("blocked requests should log, got %v", logs.Entries())
	}
}
