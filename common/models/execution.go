package models

import "time"

// Execution statuses
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

// Execution triggers
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWebhook  = "webhook"
)

// LogEntry is a single user-visible line in an execution log. Time is a
// UTC RFC 3339 string because entries round-trip through JSONB unchanged.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Execution maps to the workflow_executions table
type Execution struct {
	ID          int64      `json:"id"`
	WorkflowID  int64      `json:"workflow_id"`
	Status      string     `json:"status"`
	Trigger     string     `json:"trigger"`
	Logs        []LogEntry `json:"logs"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress event statuses beyond the execution lifecycle ones
const (
	ProgressNodeCompleted = "node_completed"
	ProgressNodeFailed    = "node_failed"
)

// ProgressEvent is broadcast over the events channel while a workflow runs
type ProgressEvent struct {
	WorkflowID  int64     `json:"workflow_id"`
	ExecutionID int64     `json:"execution_id,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
