package validation

import (
	"fmt"

	"github.com/algoflow/algoflow/common/models"
)

// GraphValidator validates workflow graphs before they are saved
type GraphValidator struct{}

// NewGraphValidator creates a new graph validator
func NewGraphValidator() *GraphValidator {
	return &GraphValidator{}
}

// ValidateGraph checks structural invariants of a workflow graph.
// Unknown node kinds are allowed (the editor may be newer than the
// engine); structural breakage is not:
//   - node ids must be non-empty and unique
//   - edges must reference existing nodes
//   - at most one start node (zero is allowed for drafts; execution
//     and activation fail on their own with "no start node found")
func (v *GraphValidator) ValidateGraph(nodes []models.Node, edges []models.Edge) error {
	ids := make(map[string]bool, len(nodes))
	startCount := 0

	for i, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: missing id", i)
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id: %s", n.ID)
		}
		ids[n.ID] = true

		if n.Kind == "" {
			return fmt.Errorf("node %s: missing type", n.ID)
		}
		if n.Kind == models.KindStart {
			startCount++
		}
	}

	if startCount > 1 {
		return fmt.Errorf("workflow must have at most one start node, found %d", startCount)
	}

	for i, e := range edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("edge %d: missing source or target", i)
		}
		if !ids[e.Source] {
			return fmt.Errorf("edge %s: source node %s does not exist", e.ID, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("edge %s: target node %s does not exist", e.ID, e.Target)
		}
	}

	return nil
}
