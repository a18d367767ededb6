package models

import "time"

// Settings is the singleton app_settings row. GatewayAPIKey holds the
// encrypted token, never the plaintext.
type Settings struct {
	AdminUsername     string    `json:"admin_username"`
	AdminPasswordHash string    `json:"-"`
	GatewayAPIKey     string    `json:"-"`
	GatewayHost       string    `json:"gateway_host"`
	GatewayWSURL      string    `json:"gateway_ws_url"`
	SetupComplete     bool      `json:"setup_complete"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasAPIKey reports whether a gateway key has been stored
func (s *Settings) HasAPIKey() bool {
	return s.GatewayAPIKey != ""
}
