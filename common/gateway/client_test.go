package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/algoflow/algoflow/common/logger"
)

func quietLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newTestClient(url string) *Client {
	return NewClient(ClientOpts{
		Host:   url,
		APIKey: "test-key",
		Logger: quietLogger(),
	})
}

func TestClientPostEnvelope(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotContentType = req.Header.Get("Content-Type")
		json.NewDecoder(req.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "success",
			"orderid": "24072500042",
			"data":    map[string]any{"symbol": "INFY"},
		})
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).PlaceOrder(context.Background(), OrderParams{
		Symbol:   "INFY",
		Action:   "BUY",
		Quantity: 10,
	})
	if !resp.OK() {
		t.Fatalf("place order failed: %+v", resp)
	}

	if gotPath != "/api/v1/placeorder" {
		t.Errorf("got path %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("got content type %q", gotContentType)
	}
	if gotBody["apikey"] != "test-key" {
		t.Errorf("api key should ride in the body, got %v", gotBody["apikey"])
	}
	if gotBody["symbol"] != "INFY" || gotBody["action"] != "BUY" {
		t.Errorf("order fields: %v", gotBody)
	}
	// empty params fall back to the gateway defaults
	if gotBody["strategy"] != DefaultStrategy || gotBody["exchange"] != DefaultExchange {
		t.Errorf("defaults: strategy=%v exchange=%v", gotBody["strategy"], gotBody["exchange"])
	}
	if gotBody["pricetype"] != DefaultPriceType || gotBody["product"] != DefaultProduct {
		t.Errorf("defaults: pricetype=%v product=%v", gotBody["pricetype"], gotBody["product"])
	}

	if resp.DataMap()["symbol"] != "INFY" {
		t.Errorf("data: %v", resp.Data)
	}
	// envelope fields beyond status/message/data survive in AsMap
	if resp.AsMap()["orderid"] != "24072500042" {
		t.Errorf("orderid should survive, got %v", resp.AsMap())
	}
}

func TestClientErrorEnvelopePassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "insufficient funds",
		})
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).Funds(context.Background())
	if resp.OK() {
		t.Fatalf("error envelope should not be ok: %+v", resp)
	}
	if resp.Message != "insufficient funds" {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestClientHTTPErrorWithoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"detail": "boom"})
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).Funds(context.Background())
	if resp.OK() {
		t.Fatalf("HTTP 500 should be an error: %+v", resp)
	}
	if resp.Message != "gateway returned HTTP 500" {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestClientSuccessWithoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"orderid": "1"})
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).Funds(context.Background())
	if !resp.OK() {
		t.Fatalf("2xx without a status field should be success: %+v", resp)
	}
	if resp.AsMap()["status"] != "success" {
		t.Errorf("inferred status should land in the envelope: %v", resp.AsMap())
	}
}

func TestClientInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<html>proxy error</html>")
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).Funds(context.Background())
	if resp.OK() {
		t.Fatalf("unparseable body should be an error: %+v", resp)
	}
	if !strings.Contains(resp.Message, "invalid gateway response") {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	resp := newTestClient(srv.URL).Funds(context.Background())
	if resp.OK() {
		t.Fatalf("dead server should be an error: %+v", resp)
	}
	if !strings.Contains(resp.Message, "gateway unreachable") {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestClientTrimsHostSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	}))
	defer srv.Close()

	newTestClient(srv.URL + "/").Funds(context.Background())
	if gotPath != "/api/v1/funds" {
		t.Errorf("got path %q", gotPath)
	}
}

func TestPingFetchesFunds(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL).Ping(context.Background())
	if !resp.OK() {
		t.Fatalf("ping failed: %+v", resp)
	}
	if gotPath != "/api/v1/funds" {
		t.Errorf("ping should verify credentials against funds, got %q", gotPath)
	}
}

func TestResponseHelpers(t *testing.T) {
	resp := Response{Status: "success", Data: map[string]any{"ltp": 100.0}}
	if !resp.OK() {
		t.Errorf("success should be ok")
	}
	if resp.DataMap()["ltp"] != 100.0 {
		t.Errorf("data map: %v", resp.DataMap())
	}
	if resp.DataList() != nil {
		t.Errorf("a map payload has no list form")
	}

	list := Response{Status: "success", Data: []any{"a", "b"}}
	if len(list.DataList()) != 2 {
		t.Errorf("data list: %v", list.DataList())
	}
	if len(list.DataMap()) != 0 {
		t.Errorf("a list payload has no map form")
	}

	// without a raw body AsMap rebuilds the envelope from its fields
	m := Response{Status: "error", Message: "nope"}.AsMap()
	if m["status"] != "error" || m["message"] != "nope" {
		t.Errorf("rebuilt envelope: %v", m)
	}

	rebuilt := ResponseFromMap(map[string]any{
		"status":   "success",
		"quantity": 75.0,
		"data":     map[string]any{"ltp": 1.0},
	})
	if !rebuilt.OK() {
		t.Errorf("rebuilt response should be ok")
	}
	if rebuilt.AsMap()["quantity"] != 75.0 {
		t.Errorf("extra fields should survive: %v", rebuilt.AsMap())
	}
}
