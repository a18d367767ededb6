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

// WorkflowRepository handles database operations for workflow definitions
type WorkflowRepository struct {
	db *db.DB
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(database *db.DB) *WorkflowRepository {
	return &WorkflowRepository{db: database}
}

// Create inserts a new workflow and fills in its id and timestamps
func (r *WorkflowRepository) Create(ctx context.Context, w *models.Workflow) error {
	nodes, edges, err := marshalGraph(w)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (name, description, nodes, edges)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query, w.Name, w.Description, nodes, edges).Scan(
		&w.ID,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow with its full graph
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, nodes, edges, is_active, schedule_job_id, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	return r.scanWorkflow(r.db.QueryRow(ctx, query, id))
}

// List returns workflow summaries with the latest execution status attached,
// newest first
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowSummary, error) {
	query := `
		SELECT w.id, w.name, w.description, w.is_active,
		       jsonb_array_length(w.nodes) AS node_count,
		       e.status, to_char(e.started_at, 'YYYY-MM-DD"T"HH24:MI:SSZ'),
		       w.created_at, w.updated_at
		FROM workflows w
		LEFT JOIN LATERAL (
			SELECT status, started_at
			FROM workflow_executions
			WHERE workflow_id = w.id
			ORDER BY started_at DESC
			LIMIT 1
		) e ON TRUE
		ORDER BY w.updated_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var summaries []*models.WorkflowSummary
	for rows.Next() {
		s := &models.WorkflowSummary{}
		err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Description,
			&s.IsActive,
			&s.NodeCount,
			&s.LastExecutionStatus,
			&s.LastExecutedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return summaries, nil
}

// Update persists name, description and graph, bumping updated_at
func (r *WorkflowRepository) Update(ctx context.Context, w *models.Workflow) error {
	nodes, edges, err := marshalGraph(w)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, nodes = $4, edges = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query, w.ID, w.Name, w.Description, nodes, edges).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	return nil
}

// Delete removes a workflow; executions cascade
func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips activation state and records the scheduler job id
// (nil when deactivating)
func (r *WorkflowRepository) SetActive(ctx context.Context, id int64, active bool, jobID *string) error {
	query := `
		UPDATE workflows
		SET is_active = $2, schedule_job_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, active, jobID)
	if err != nil {
		return fmt.Errorf("failed to set workflow active state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns full workflows that are currently active, used to
// re-register schedules after a restart
func (r *WorkflowRepository) ListActive(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT id, name, description, nodes, edges, is_active, schedule_job_id, created_at, updated_at
		FROM workflows
		WHERE is_active
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		w, err := r.scanWorkflowRow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*models.Workflow, error) {
	w, err := r.scanWorkflowRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

func (r *WorkflowRepository) scanWorkflowRow(row rowScanner) (*models.Workflow, error) {
	w := &models.Workflow{}
	var nodes, edges []byte

	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Description,
		&nodes,
		&edges,
		&w.IsActive,
		&w.ScheduleJobID,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode workflow nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &w.Edges); err != nil {
		return nil, fmt.Errorf("failed to decode workflow edges: %w", err)
	}

	return w, nil
}

func marshalGraph(w *models.Workflow) ([]byte, []byte, error) {
	if w.Nodes == nil {
		w.Nodes = []models.Node{}
	}
	if w.Edges == nil {
		w.Edges = []models.Edge{}
	}

	nodes, err := json.Marshal(w.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode workflow nodes: %w", err)
	}
	edges, err := json.Marshal(w.Edges)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode workflow edges: %w", err)
	}

	return nodes, edges, nil
}
