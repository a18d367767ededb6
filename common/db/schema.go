package db

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so the service can bootstrap a fresh
// database on first start and upgrade in place afterwards.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		admin_username TEXT NOT NULL DEFAULT 'admin',
		admin_password_hash TEXT,
		gateway_api_key TEXT,
		gateway_host TEXT NOT NULL DEFAULT 'http://127.0.0.1:5000',
		gateway_ws_url TEXT NOT NULL DEFAULT 'ws://127.0.0.1:8765',
		setup_complete BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`INSERT INTO app_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS workflows (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		nodes JSONB NOT NULL DEFAULT '[]',
		edges JSONB NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		schedule_job_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_executions (
		id BIGSERIAL PRIMARY KEY,
		workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		trigger TEXT NOT NULL DEFAULT 'manual',
		logs JSONB NOT NULL DEFAULT '[]',
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_workflow
		ON workflow_executions (workflow_id, started_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_workflows_active
		ON workflows (is_active) WHERE is_active`,
}

// InitSchema creates the application tables if they do not exist
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.log.Info("database schema ready")
	return nil
}
