package repository

import (
	"context"
	"fmt"

	"github.com/algoflow/algoflow/common/db"
	"github.com/algoflow/algoflow/common/models"
)

// SettingsRepository handles the singleton app_settings row
type SettingsRepository struct {
	db *db.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(database *db.DB) *SettingsRepository {
	return &SettingsRepository{db: database}
}

// Get loads the settings row. The row is seeded by the schema bootstrap,
// so it always exists.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT admin_username, COALESCE(admin_password_hash, ''), COALESCE(gateway_api_key, ''),
		       gateway_host, gateway_ws_url, setup_complete, updated_at
		FROM app_settings
		WHERE id = 1
	`

	s := &models.Settings{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.AdminUsername,
		&s.AdminPasswordHash,
		&s.GatewayAPIKey,
		&s.GatewayHost,
		&s.GatewayWSURL,
		&s.SetupComplete,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return s, nil
}

// UpdateGateway stores gateway coordinates. The API key arrives already
// encrypted; an empty string keeps the stored key.
func (r *SettingsRepository) UpdateGateway(ctx context.Context, encryptedKey, host, wsURL string) error {
	query := `
		UPDATE app_settings
		SET gateway_api_key = CASE WHEN $1 = '' THEN gateway_api_key ELSE $1 END,
		    gateway_host = $2,
		    gateway_ws_url = $3,
		    updated_at = NOW()
		WHERE id = 1
	`

	if _, err := r.db.Exec(ctx, query, encryptedKey, host, wsURL); err != nil {
		return fmt.Errorf("failed to update gateway settings: %w", err)
	}
	return nil
}

// SetCredentials stores the admin identity and marks setup complete
func (r *SettingsRepository) SetCredentials(ctx context.Context, username, passwordHash string) error {
	query := `
		UPDATE app_settings
		SET admin_username = $1, admin_password_hash = $2, setup_complete = TRUE, updated_at = NOW()
		WHERE id = 1
	`

	if _, err := r.db.Exec(ctx, query, username, passwordHash); err != nil {
		return fmt.Errorf("failed to set credentials: %w", err)
	}
	return nil
}

// SetPasswordHash rotates the admin password
func (r *SettingsRepository) SetPasswordHash(ctx context.Context, passwordHash string) error {
	query := `
		UPDATE app_settings
		SET admin_password_hash = $1, updated_at = NOW()
		WHERE id = 1
	`

	if _, err := r.db.Exec(ctx, query, passwordHash); err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	return nil
}
