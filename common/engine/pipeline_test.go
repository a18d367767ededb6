package engine

import (
	"context"
	"testing"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/models"
)

// Full-graph flows: several node kinds chained the way the editor wires
// them, run through the traverser end to end.

func TestPipelineQuoteConditionOrder(t *testing.T) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "sym", Kind: models.KindVariable, Data: map[string]any{
			"operation": "set", "name": "sym", "value": "NIFTY",
		}},
		{ID: "quote", Kind: models.KindGetQuote, Data: map[string]any{
			"symbol": "{{sym}}", "outputVariable": "quote",
		}},
		{ID: "cond", Kind: models.KindPriceCondition, Data: map[string]any{
			"symbol": "{{sym}}", "operator": "gt", "threshold": 2400.0,
		}},
		{ID: "order", Kind: models.KindPlaceOrder, Data: map[string]any{
			"symbol": "{{sym}}", "action": "SELL", "quantity": 75,
		}},
		{ID: "skip", Kind: models.KindLog, Data: map[string]any{"message": "below threshold"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "sym"},
		{ID: "e2", Source: "sym", Target: "quote"},
		{ID: "e3", Source: "quote", Target: "cond"},
		{ID: "e4", Source: "cond", Target: "order", SourceHandle: "yes"},
		{ID: "e5", Source: "cond", Target: "skip", SourceHandle: "no"},
	}

	t.Run("above threshold places the order", func(t *testing.T) {
		gw := quoteAt(2500)
		tr, _, logs, _ := newTestTraverser(gw, nodes, edges)

		if err := tr.Run(context.Background(), "start"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if !gw.called("PlaceOrder") {
			t.Fatalf("2500 > 2400 should place the order, calls %v", gw.calls)
		}
		p, ok := gw.params["PlaceOrder"].(gateway.OrderParams)
		if !ok {
			t.Fatalf("recorded params have type %T", gw.params["PlaceOrder"])
		}
		if p.Symbol != "NIFTY" {
			t.Errorf("symbol should interpolate from the variable, got %q", p.Symbol)
		}
		if p.Action != "SELL" || p.Quantity != 75 {
			t.Errorf("order params not carried through: %+v", p)
		}
		if hasLogContaining(logs, "below threshold") {
			t.Errorf("the no branch must not run")
		}
	})

	t.Run("below threshold takes the no branch", func(t *testing.T) {
		gw := quoteAt(2300)
		tr, _, logs, _ := newTestTraverser(gw, nodes, edges)

		if err := tr.Run(context.Background(), "start"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if gw.called("PlaceOrder") {
			t.Errorf("2300 > 2400 is false, no order expected")
		}
		if !hasLogContaining(logs, "below threshold") {
			t.Errorf("the no branch should log, got %v", logs.Entries())
		}
	})
}

// timeWindowGraph chains two window guards into an and-gate: the second
// window only runs while the first holds, and the gate fires the order
// only when both recorded true.
func timeWindowGraph(w1start, w1end, w2start, w2end string) ([]models.Node, []models.Edge) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "w1", Kind: models.KindTimeWindow, Data: map[string]any{
			"startTime": w1start, "endTime": w1end,
		}},
		{ID: "w2", Kind: models.KindTimeWindow, Data: map[string]any{
			"startTime": w2start, "endTime": w2end,
		}},
		{ID: "gate", Kind: models.KindAndGate},
		{ID: "order", Kind: models.KindPlaceOrder, Data: map[string]any{
			"symbol": "NIFTY", "action": "BUY", "quantity": 75,
		}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "w1"},
		{ID: "e2", Source: "w1", Target: "w2", SourceHandle: "yes"},
		{ID: "e3", Source: "w1", Target: "gate", SourceHandle: "yes"},
		{ID: "e4", Source: "w2", Target: "gate", SourceHandle: "yes"},
		{ID: "e5", Source: "gate", Target: "order", SourceHandle: "yes"},
	}
	return nodes, edges
}

func runAt(t *testing.T, gw *fakeGateway, nodes []models.Node, edges []models.Edge, clock time.Time) *LogBuffer {
	t.Helper()
	ectx := NewContext()
	logs := NewLogBuffer(nil)
	r := NewRunner(RunnerOpts{
		Context: ectx,
		Gateway: gw,
		Stream:  &fakeStream{},
		Logs:    logs,
	})
	r.now = func() time.Time { return clock }

	tr := NewTraverser(TraverserOpts{
		Nodes:   nodes,
		Edges:   edges,
		Runner:  r,
		Context: ectx,
		Logs:    logs,
	})
	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return logs
}

func TestPipelineTimeWindowsGateOrder(t *testing.T) {
	ten := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

	t.Run("inside both windows", func(t *testing.T) {
		nodes, edges := timeWindowGraph("09:15", "15:30", "09:30", "11:00")
		gw := newFakeGateway()
		runAt(t, gw, nodes, edges, ten)
		if !gw.called("PlaceOrder") {
			t.Errorf("10:00 is inside both windows, order expected")
		}
	})

	t.Run("outside the first window", func(t *testing.T) {
		nodes, edges := timeWindowGraph("11:30", "12:30", "09:30", "11:00")
		gw := newFakeGateway()
		runAt(t, gw, nodes, edges, ten)
		if gw.called("PlaceOrder") {
			t.Errorf("first window excludes 10:00, no order expected")
		}
	})

	t.Run("outside the second window", func(t *testing.T) {
		nodes, edges := timeWindowGraph("09:15", "15:30", "11:30", "12:30")
		gw := newFakeGateway()
		runAt(t, gw, nodes, edges, ten)
		if gw.called("PlaceOrder") {
			t.Errorf("second window excludes 10:00, no order expected")
		}
	})
}

func TestPipelineVariableMathLog(t *testing.T) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "lot", Kind: models.KindVariable, Data: map[string]any{
			"operation": "set", "name": "lot", "value": 50,
		}},
		{ID: "quote", Kind: models.KindGetQuote, Data: map[string]any{
			"symbol": "NIFTY", "outputVariable": "var",
		}},
		{ID: "math", Kind: models.KindMathExpression, Data: map[string]any{
			"expression":     "{{lot}} * {{var.data.ltp}} + 100",
			"outputVariable": "cost",
		}},
		{ID: "out", Kind: models.KindLog, Data: map[string]any{"message": "{{cost}}"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "lot"},
		{ID: "e2", Source: "lot", Target: "quote"},
		{ID: "e3", Source: "quote", Target: "math"},
		{ID: "e4", Source: "math", Target: "out"},
	}

	tr, ectx, logs, _ := newTestTraverser(quoteAt(10), nodes, edges)
	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	cost, ok := ectx.GetVariable("cost")
	if !ok {
		t.Fatalf("cost should be set")
	}
	if got, _ := toFloat(cost); got != 600 {
		t.Errorf("50 * 10 + 100 = 600, got %v", cost)
	}
	if !hasLogContaining(logs, "[LOG] 600") {
		t.Errorf("log node should emit the stringified cost, got %v", logs.Entries())
	}
}
