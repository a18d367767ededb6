package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/models"
)

func newTestTraverser(gw Gateway, nodes []models.Node, edges []models.Edge) (*Traverser, *Context, *LogBuffer, *[]string) {
	ectx := NewContext()
	logs := NewLogBuffer(nil)
	r := NewRunner(RunnerOpts{
		Context:    ectx,
		Gateway:    gw,
		Stream:     &fakeStream{},
		Logs:       logs,
		StreamWait: 20 * time.Millisecond,
	})

	executed := []string{}
	tr := NewTraverser(TraverserOpts{
		Nodes:   nodes,
		Edges:   edges,
		Runner:  r,
		Context: ectx,
		Logs:    logs,
		OnProgress: func(n models.Node, _ Result) {
			executed = append(executed, n.ID)
		},
	})
	return tr, ectx, logs, &executed
}

func countOf(ids []string, id string) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}

func quoteAt(ltp float64) *fakeGateway {
	return newFakeGateway().respond("Quote", gateway.Response{
		Status: "success",
		Data:   map[string]any{"ltp": ltp},
	})
}

func branchGraph(threshold float64) ([]models.Node, []models.Edge) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "cond", Kind: models.KindPriceCondition, Data: map[string]any{
			"symbol": "NIFTY", "operator": "gt", "threshold": threshold,
		}},
		{ID: "yes", Kind: models.KindLog, Data: map[string]any{"message": "yes path"}},
		{ID: "no", Kind: models.KindLog, Data: map[string]any{"message": "no path"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "cond"},
		{ID: "e2", Source: "cond", Target: "yes", SourceHandle: "yes"},
		{ID: "e3", Source: "cond", Target: "no", SourceHandle: "no"},
	}
	return nodes, edges
}

func TestTraverserFollowsYesBranch(t *testing.T) {
	nodes, edges := branchGraph(2400)
	tr, ectx, logs, executed := newTestTraverser(quoteAt(2500), nodes, edges)

	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if countOf(*executed, "yes") != 1 || countOf(*executed, "no") != 0 {
		t.Errorf("2500 > 2400 should take the yes branch, executed %v", *executed)
	}
	if !hasLogContaining(logs, "yes path") || hasLogContaining(logs, "no path") {
		t.Errorf("only the yes branch should log, got %v", logs.Entries())
	}
	if met, ok := ectx.ConditionResult("cond"); !ok || !met {
		t.Errorf("condition outcome should be memoized")
	}
	// the start node produces no envelope and no progress event
	if countOf(*executed, "start") != 0 {
		t.Errorf("start should not appear in progress, executed %v", *executed)
	}
}

func TestTraverserFollowsNoBranch(t *testing.T) {
	nodes, edges := branchGraph(2600)
	tr, _, _, executed := newTestTraverser(quoteAt(2500), nodes, edges)

	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if countOf(*executed, "no") != 1 || countOf(*executed, "yes") != 0 {
		t.Errorf("2500 > 2600 should take the no branch, executed %v", *executed)
	}
}

func TestTraverserPlainEdgesFollowBothOutcomes(t *testing.T) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "cond", Kind: models.KindPriceCondition, Data: map[string]any{
			"symbol": "NIFTY", "operator": "gt", "threshold": 9999.0,
		}},
		{ID: "always", Kind: models.KindLog, Data: map[string]any{"message": "always runs"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "cond"},
		{ID: "e2", Source: "cond", Target: "always"},
	}
	tr, _, _, executed := newTestTraverser(quoteAt(2500), nodes, edges)

	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if countOf(*executed, "always") != 1 {
		t.Errorf("handle-less edges should be followed on either outcome, executed %v", *executed)
	}
}

func TestTraverserMissingTargetWarns(t *testing.T) {
	nodes := []models.Node{{ID: "start", Kind: models.KindStart}}
	edges := []models.Edge{{ID: "e1", Source: "start", Target: "ghost"}}
	tr, _, logs, _ := newTestTraverser(newFakeGateway(), nodes, edges)

	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("dangling edges should not be fatal: %v", err)
	}
	if !hasLogContaining(logs, "Edge references missing node: ghost") {
		t.Errorf("dangling edge should warn, got %v", logs.Entries())
	}
}

func TestTraverserDepthLimitBreaksCycles(t *testing.T) {
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "loop", Kind: models.KindLog, Data: map[string]any{"message": "around we go"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "loop"},
		{ID: "e2", Source: "loop", Target: "loop"},
	}
	tr, _, logs, _ := newTestTraverser(newFakeGateway(), nodes, edges)

	err := tr.Run(context.Background(), "start")
	if err == nil {
		t.Fatalf("a self-loop should exhaust the depth limit")
	}
	if !strings.Contains(err.Error(), "depth") {
		t.Errorf("got %v, want a depth error", err)
	}
	if !hasLogContaining(logs, "possible loop") {
		t.Errorf("repeated visits should warn, got %d entries", len(logs.Entries()))
	}
}

func TestTraverserVisitLimit(t *testing.T) {
	// ten levels of doubled edges fan out to over 1000 visits
	nodes := []models.Node{{ID: "start", Kind: models.KindStart}}
	edges := []models.Edge{{ID: "e0", Source: "start", Target: "n0"}}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("n%d", i)
		nodes = append(nodes, models.Node{ID: id, Kind: models.KindLog, Data: map[string]any{"message": id}})
		if i < 9 {
			next := fmt.Sprintf("n%d", i+1)
			edges = append(edges,
				models.Edge{ID: id + "a", Source: id, Target: next},
				models.Edge{ID: id + "b", Source: id, Target: next},
			)
		}
	}
	tr, _, _, _ := newTestTraverser(newFakeGateway(), nodes, edges)

	err := tr.Run(context.Background(), "start")
	if err == nil {
		t.Fatalf("exponential fan-out should exhaust the visit limit")
	}
	if !strings.Contains(err.Error(), "visits") {
		t.Errorf("got %v, want a visit limit error", err)
	}
}

func TestTraverserGateEvaluatesPerArrival(t *testing.T) {
	// c1 fails, c2 passes. The or-gate runs once per incoming branch with
	// whatever outcomes are memoized so far: [false] then [false,true].
	nodes := []models.Node{
		{ID: "start", Kind: models.KindStart},
		{ID: "c1", Kind: models.KindPriceCondition, Data: map[string]any{
			"symbol": "NIFTY", "operator": "gt", "threshold": 9999.0,
		}},
		{ID: "c2", Kind: models.KindPriceCondition, Data: map[string]any{
			"symbol": "NIFTY", "operator": "gt", "threshold": 1.0,
		}},
		{ID: "gate", Kind: models.KindOrGate},
		{ID: "hit", Kind: models.KindLog, Data: map[string]any{"message": "gate fired"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "start", Target: "c1"},
		{ID: "e2", Source: "start", Target: "c2"},
		{ID: "e3", Source: "c1", Target: "gate"},
		{ID: "e4", Source: "c2", Target: "gate"},
		{ID: "e5", Source: "gate", Target: "hit", SourceHandle: "yes"},
	}
	tr, _, _, executed := newTestTraverser(quoteAt(2500), nodes, edges)

	if err := tr.Run(context.Background(), "start"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := countOf(*executed, "gate"); got != 2 {
		t.Errorf("gate should run per arrival, got %d", got)
	}
	if got := countOf(*executed, "hit"); got != 1 {
		t.Errorf("yes branch should fire once the or-gate sees a pass, got %d", got)
	}
}

func TestTraverserCancelledContext(t *testing.T) {
	nodes, edges := branchGraph(2400)
	tr, _, _, _ := newTestTraverser(quoteAt(2500), nodes, edges)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Run(ctx, "start")
	if err == nil {
		t.Fatalf("cancelled context should abort traversal")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("got %v", err)
	}
}
