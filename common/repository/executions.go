package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/algoflow/algoflow/common/db"
	"github.com/algoflow/algoflow/common/models"
)

// ExecutionRepository handles database operations for execution records
type ExecutionRepository struct {
	db *db.DB
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(database *db.DB) *ExecutionRepository {
	return &ExecutionRepository{db: database}
}

// Create inserts a running execution record and returns it with its id
func (r *ExecutionRepository) Create(ctx context.Context, workflowID int64, trigger string) (*models.Execution, error) {
	query := `
		INSERT INTO workflow_executions (workflow_id, status, trigger)
		VALUES ($1, $2, $3)
		RETURNING id, started_at
	`

	exec := &models.Execution{
		WorkflowID: workflowID,
		Status:     models.ExecutionRunning,
		Trigger:    trigger,
		Logs:       []models.LogEntry{},
	}

	err := r.db.QueryRow(ctx, query, workflowID, models.ExecutionRunning, trigger).Scan(
		&exec.ID,
		&exec.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return exec, nil
}

// Finish records the terminal state of an execution along with its full log
func (r *ExecutionRepository) Finish(ctx context.Context, id int64, status string, logs []models.LogEntry, errMsg *string) error {
	if logs == nil {
		logs = []models.LogEntry{}
	}
	encoded, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("failed to encode execution logs: %w", err)
	}

	query := `
		UPDATE workflow_executions
		SET status = $2, logs = $3, error = $4, completed_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status, encoded, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a single execution with its logs
func (r *ExecutionRepository) GetByID(ctx context.Context, id int64) (*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, trigger, logs, error, started_at, completed_at
		FROM workflow_executions
		WHERE id = $1
	`

	exec, err := scanExecution(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exec, err
}

// ListByWorkflow returns recent executions for a workflow, newest first
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID int64, limit int) ([]*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, trigger, logs, error, started_at, completed_at
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	exec := &models.Execution{}
	var logs []byte

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&exec.Status,
		&exec.Trigger,
		&logs,
		&exec.Error,
		&exec.StartedAt,
		&exec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	if err := json.Unmarshal(logs, &exec.Logs); err != nil {
		return nil, fmt.Errorf("failed to decode execution logs: %w", err)
	}

	return exec, nil
}
