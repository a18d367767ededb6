package engine

import (
	"context"
	"fmt"

	"github.com/algoflow/algoflow/common/models"
)

const (
	// MaxNodeDepth bounds how deep one traversal path can go.
	MaxNodeDepth = 100
	// MaxNodeVisits bounds total node executions per workflow run.
	MaxNodeVisits = 500

	loopWarnThreshold = 10
)

// ProgressFunc receives each executed node and its result
type ProgressFunc func(node models.Node, result Result)

// Traverser walks a workflow graph depth-first in declared edge order,
// executing each node through the runner and routing on condition
// outcomes.
type Traverser struct {
	nodes map[string]models.Node
	out   map[string][]models.Edge
	in    map[string][]models.Edge

	runner     *Runner
	ctx        *Context
	logs       *LogBuffer
	onProgress ProgressFunc

	visits  int
	perNode map[string]int
}

// TraverserOpts configures a Traverser
type TraverserOpts struct {
	Nodes      []models.Node
	Edges      []models.Edge
	Runner     *Runner
	Context    *Context
	Logs       *LogBuffer
	OnProgress ProgressFunc
}

// NewTraverser indexes the graph. Edge order within a node follows the
// declared order so branches execute deterministically.
func NewTraverser(opts TraverserOpts) *Traverser {
	t := &Traverser{
		nodes:      make(map[string]models.Node, len(opts.Nodes)),
		out:        make(map[string][]models.Edge),
		in:         make(map[string][]models.Edge),
		runner:     opts.Runner,
		ctx:        opts.Context,
		logs:       opts.Logs,
		onProgress: opts.OnProgress,
		perNode:    make(map[string]int),
	}
	for _, n := range opts.Nodes {
		t.nodes[n.ID] = n
	}
	for _, e := range opts.Edges {
		t.out[e.Source] = append(t.out[e.Source], e)
		t.in[e.Target] = append(t.in[e.Target], e)
	}
	return t
}

// Run traverses from the start node. The returned error is fatal for the
// whole execution; per-node business failures are folded into envelopes
// and do not stop traversal.
func (t *Traverser) Run(ctx context.Context, startID string) error {
	return t.visit(ctx, startID, 0)
}

func (t *Traverser) visit(ctx context.Context, nodeID string, depth int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("traversal cancelled: %w", err)
	}
	if depth > MaxNodeDepth {
		return fmt.Errorf("maximum node depth exceeded (%d)", MaxNodeDepth)
	}

	node, ok := t.nodes[nodeID]
	if !ok {
		t.logs.Append("warning", "Edge references missing node: "+nodeID)
		return nil
	}

	t.visits++
	if t.visits > MaxNodeVisits {
		return fmt.Errorf("maximum node visits exceeded (%d), aborting", MaxNodeVisits)
	}
	t.perNode[nodeID]++
	if t.perNode[nodeID] == loopWarnThreshold+1 {
		t.logs.Append("warning", fmt.Sprintf("Node %s visited more than %d times, possible loop", nodeID, loopWarnThreshold))
	}

	var incoming []bool
	if models.IsGateKind(node.Kind) {
		incoming = t.incomingConditions(nodeID)
	}

	result := t.runner.Execute(ctx, node, incoming)

	edges := t.out[nodeID]
	if result != nil {
		if met, ok := result.Condition(); ok {
			t.ctx.SetConditionResult(nodeID, met)
			edges = filterEdges(edges, met)
		}
		if t.onProgress != nil {
			t.onProgress(node, result)
		}
	}

	for _, edge := range edges {
		if edge.Target == "" {
			continue
		}
		if err := t.visit(ctx, edge.Target, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// incomingConditions collects memoized outcomes of the node's upstream
// conditionals, in declared edge order. Upstreams without a recorded
// outcome are skipped.
func (t *Traverser) incomingConditions(nodeID string) []bool {
	edges := t.in[nodeID]
	incoming := make([]bool, 0, len(edges))
	for _, e := range edges {
		if met, ok := t.ctx.ConditionResult(e.Source); ok {
			incoming = append(incoming, met)
		}
	}
	return incoming
}

// filterEdges keeps the branch edges matching a condition outcome. Edges
// with no handle are followed on both outcomes. A handle pointing at the
// untaken side is dropped silently.
func filterEdges(edges []models.Edge, met bool) []models.Edge {
	want := "no"
	if met {
		want = "yes"
	}

	kept := make([]models.Edge, 0, len(edges))
	for _, e := range edges {
		if e.SourceHandle == "" || e.SourceHandle == want {
			kept = append(kept, e)
		}
	}
	return kept
}
