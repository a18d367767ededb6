package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/models"
)

// fakeGateway records calls and replays canned responses keyed by method
// name. Methods without a canned response return a bare success envelope.
type fakeGateway struct {
	responses map[string]gateway.Response
	calls     []string
	params    map[string]any
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: make(map[string]gateway.Response),
		params:    make(map[string]any),
	}
}

func (f *fakeGateway) respond(name string, resp gateway.Response) *fakeGateway {
	f.responses[name] = resp
	return f
}

func (f *fakeGateway) record(name string, params any) gateway.Response {
	f.calls = append(f.calls, name)
	f.params[name] = params
	if resp, ok := f.responses[name]; ok {
		return resp
	}
	return gateway.Response{Status: "success"}
}

func (f *fakeGateway) called(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeGateway) PlaceOrder(_ context.Context, p gateway.OrderParams) gateway.Response {
	return f.record("PlaceOrder", p)
}

func (f *fakeGateway) SmartOrder(_ context.Context, p gateway.SmartOrderParams) gateway.Response {
	return f.record("SmartOrder", p)
}

func (f *fakeGateway) OptionsOrder(_ context.Context, p gateway.OptionsOrderParams) gateway.Response {
	return f.record("OptionsOrder", p)
}

func (f *fakeGateway) OptionsMultiOrder(_ context.Context, p gateway.OptionsMultiOrderParams) gateway.Response {
	return f.record("OptionsMultiOrder", p)
}

func (f *fakeGateway) BasketOrder(_ context.Context, strategy string, orders []map[string]any) gateway.Response {
	return f.record("BasketOrder", map[string]any{"strategy": strategy, "orders": orders})
}

func (f *fakeGateway) SplitOrder(_ context.Context, p gateway.SplitOrderParams) gateway.Response {
	return f.record("SplitOrder", p)
}

func (f *fakeGateway) ModifyOrder(_ context.Context, p gateway.ModifyOrderParams) gateway.Response {
	return f.record("ModifyOrder", p)
}

func (f *fakeGateway) CancelOrder(_ context.Context, orderID, strategy string) gateway.Response {
	return f.record("CancelOrder", map[string]any{"orderid": orderID, "strategy": strategy})
}

func (f *fakeGateway) CancelAllOrders(_ context.Context, strategy string) gateway.Response {
	return f.record("CancelAllOrders", strategy)
}

func (f *fakeGateway) ClosePositions(_ context.Context, strategy string) gateway.Response {
	return f.record("ClosePositions", strategy)
}

func (f *fakeGateway) OrderStatus(_ context.Context, orderID, strategy string) gateway.Response {
	return f.record("OrderStatus", map[string]any{"orderid": orderID, "strategy": strategy})
}

func (f *fakeGateway) OpenPosition(_ context.Context, symbol, exchange, product string) gateway.Response {
	return f.record("OpenPosition", map[string]any{"symbol": symbol, "exchange": exchange, "product": product})
}

func (f *fakeGateway) Quote(_ context.Context, symbol, exchange string) gateway.Response {
	return f.record("Quote", map[string]any{"symbol": symbol, "exchange": exchange})
}

func (f *fakeGateway) MultiQuote(_ context.Context, symbols []gateway.SymbolRef) gateway.Response {
	return f.record("MultiQuote", symbols)
}

func (f *fakeGateway) Depth(_ context.Context, symbol, exchange string) gateway.Response {
	return f.record("Depth", map[string]any{"symbol": symbol, "exchange": exchange})
}

func (f *fakeGateway) History(_ context.Context, symbol, exchange, interval, startDate, endDate string) gateway.Response {
	return f.record("History", map[string]any{"symbol": symbol, "interval": interval})
}

func (f *fakeGateway) Expiry(_ context.Context, symbol, exchange, instrumentType string) gateway.Response {
	return f.record("Expiry", map[string]any{"symbol": symbol, "exchange": exchange})
}

func (f *fakeGateway) OptionChain(_ context.Context, underlying, exchange, expiryDate string, strikeCount int) gateway.Response {
	return f.record("OptionChain", map[string]any{"underlying": underlying, "expiry_date": expiryDate, "strike_count": strikeCount})
}

func (f *fakeGateway) OptionSymbol(_ context.Context, underlying, exchange, expiryDate, offset, optionType string) gateway.Response {
	return f.record("OptionSymbol", map[string]any{"underlying": underlying, "expiry_date": expiryDate, "offset": offset, "option_type": optionType})
}

func (f *fakeGateway) SyntheticFuture(_ context.Context, underlying, exchange, expiryDate string) gateway.Response {
	return f.record("SyntheticFuture", map[string]any{"underlying": underlying, "expiry_date": expiryDate})
}

func (f *fakeGateway) SymbolInfo(_ context.Context, symbol, exchange string) gateway.Response {
	return f.record("SymbolInfo", map[string]any{"symbol": symbol, "exchange": exchange})
}

func (f *fakeGateway) Funds(_ context.Context) gateway.Response {
	return f.record("Funds", nil)
}

func (f *fakeGateway) Holdings(_ context.Context) gateway.Response {
	return f.record("Holdings", nil)
}

func (f *fakeGateway) PositionBook(_ context.Context) gateway.Response {
	return f.record("PositionBook", nil)
}

func (f *fakeGateway) TradeBook(_ context.Context) gateway.Response {
	return f.record("TradeBook", nil)
}

func (f *fakeGateway) OrderBook(_ context.Context) gateway.Response {
	return f.record("OrderBook", nil)
}

func (f *fakeGateway) Margin(_ context.Context, p gateway.OrderParams) gateway.Response {
	return f.record("Margin", p)
}

func (f *fakeGateway) Holidays(_ context.Context, year int) gateway.Response {
	return f.record("Holidays", year)
}

func (f *fakeGateway) Timings(_ context.Context, date string) gateway.Response {
	return f.record("Timings", date)
}

func (f *fakeGateway) Telegram(_ context.Context, username, message string) gateway.Response {
	return f.record("Telegram", map[string]any{"username": username, "message": message})
}

// fakeStream satisfies Stream. A non-nil tick is delivered synchronously
// on Subscribe; err fails the subscription.
type fakeStream struct {
	tick     map[string]any
	err      error
	subs     []string
	unsubs   []string
	unsubAll int
}

func (f *fakeStream) Subscribe(_ context.Context, mode, exchange, symbol string, fn gateway.TickFunc) error {
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, mode+":"+exchange+":"+symbol)
	if f.tick != nil {
		fn(f.tick)
	}
	return nil
}

func (f *fakeStream) Unsubscribe(_ context.Context, mode, exchange, symbol string) error {
	f.unsubs = append(f.unsubs, mode+":"+exchange+":"+symbol)
	return nil
}

func (f *fakeStream) UnsubscribeAll(_ context.Context) {
	f.unsubAll++
}

func newTestRunner(gw Gateway, stream Stream) (*Runner, *Context, *LogBuffer) {
	ectx := NewContext()
	logs := NewLogBuffer(nil)
	r := NewRunner(RunnerOpts{
		Context:    ectx,
		Gateway:    gw,
		Stream:     stream,
		Logs:       logs,
		StreamWait: 20 * time.Millisecond,
	})
	return r, ectx, logs
}

func hasLogContaining(logs *LogBuffer, substr string) bool {
	for _, e := range logs.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestExecuteStartNodeProducesNoEnvelope(t *testing.T) {
	r, _, logs := newTestRunner(newFakeGateway(), &fakeStream{})

	result := r.Execute(context.Background(), models.Node{ID: "n1", Kind: models.KindStart}, nil)
	if result != nil {
		t.Fatalf("start node should produce no envelope, got %v", result)
	}
	if !hasLogContaining(logs, "Workflow started") {
		t.Errorf("start node should log workflow start")
	}
}

func TestExecuteGroupNodeIsPassThrough(t *testing.T) {
	r, _, logs := newTestRunner(newFakeGateway(), &fakeStream{})

	result := r.Execute(context.Background(), models.Node{ID: "g1", Kind: models.KindGroup}, nil)
	if result != nil {
		t.Fatalf("group node should produce no envelope, got %v", result)
	}
	if len(logs.Entries()) != 0 {
		t.Errorf("group node should not log, got %v", logs.Entries())
	}
}

func TestExecuteUnknownKindWarnsAndContinues(t *testing.T) {
	r, _, logs := newTestRunner(newFakeGateway(), &fakeStream{})

	result := r.Execute(context.Background(), models.Node{ID: "x", Kind: "futureKind"}, nil)
	if result != nil {
		t.Fatalf("unknown kind should produce no envelope, got %v", result)
	}
	if !hasLogContaining(logs, "Unknown node type: futureKind") {
		t.Errorf("unknown kind should log a warning, got %v", logs.Entries())
	}
}

func TestExecuteNilDataIsTolerated(t *testing.T) {
	gw := newFakeGateway()
	r, _, _ := newTestRunner(gw, &fakeStream{})

	result := r.Execute(context.Background(), models.Node{ID: "f", Kind: models.KindFunds, Data: nil}, nil)
	if !result.OK() {
		t.Fatalf("funds with nil data should succeed, got %v", result)
	}
	if !gw.called("Funds") {
		t.Errorf("funds node should call the gateway")
	}
}

func TestStoreOutputCopiesEnvelopeIntoVariable(t *testing.T) {
	gw := newFakeGateway().respond("Quote", gateway.Response{
		Status: "success",
		Data:   map[string]any{"ltp": 101.5},
	})
	r, ectx, _ := newTestRunner(gw, &fakeStream{})

	node := models.Node{ID: "q", Kind: models.KindGetQuote, Data: map[string]any{
		"symbol":         "RELIANCE",
		"outputVariable": "quote",
	}}
	result := r.Execute(context.Background(), node, nil)
	if !result.OK() {
		t.Fatalf("quote should succeed, got %v", result)
	}

	stored, ok := ectx.GetVariable("quote")
	if !ok {
		t.Fatalf("outputVariable should be set")
	}
	m, ok := stored.(map[string]any)
	if !ok {
		t.Fatalf("stored output should be the envelope map, got %T", stored)
	}
	data, _ := m["data"].(map[string]any)
	if data["ltp"] != 101.5 {
		t.Errorf("expected ltp 101.5 in stored envelope, got %v", data["ltp"])
	}
}
