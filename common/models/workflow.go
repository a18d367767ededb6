package models

import "time"

// Workflow maps to the workflows table. Nodes and edges persist as JSONB
// exactly as the editor sends them.
type Workflow struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Nodes         []Node    `json:"nodes"`
	Edges         []Edge    `json:"edges"`
	IsActive      bool      `json:"is_active"`
	ScheduleJobID *string   `json:"schedule_job_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StartNode returns the workflow's start node, if any
func (w *Workflow) StartNode() (Node, bool) {
	for _, n := range w.Nodes {
		if n.Kind == KindStart {
			return n, true
		}
	}
	return Node{}, false
}

// WorkflowSummary is the list-view projection: full graphs stay in the
// detail endpoint, lists carry counts and the latest execution status.
type WorkflowSummary struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	IsActive            bool      `json:"is_active"`
	NodeCount           int       `json:"node_count"`
	LastExecutionStatus *string   `json:"last_execution_status,omitempty"`
	LastExecutedAt      *string   `json:"last_executed_at,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WorkflowUpdate carries the merge-patch body for partial updates.
// Absent fields keep their stored values.
type WorkflowUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Nodes       *[]Node `json:"nodes,omitempty"`
	Edges       *[]Edge `json:"edges,omitempty"`
}
