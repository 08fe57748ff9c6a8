package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
			Mode: ServerModeHTTP,
		},
		N8n: N8nConfig{Timeout: 30 * time.Second},
		Sessions: SessionConfig{
			TTL:           30 * time.Minute,
			MaxSessions:   1000,
			SweepInterval: time.Minute,
		},
	}
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(baseConfig()))
}

func TestValidate_AuthRequiresToken(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth = AuthConfig{Enabled: true, Mode: AuthModeToken}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token is required")

	cfg.Auth.Token = "s3cret"
	require.NoError(t, Validate(cfg))
}

func TestValidate_AuthMode(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth = AuthConfig{Enabled: true, Mode: "oauth", Token: "x"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported auth mode")
}

func TestValidate_N8nURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		apiKey  string
		wantErr string
	}{
		{name: "valid https", url: "https://n8n.example.com", apiKey: "key"},
		{name: "valid http", url: "http://localhost:5678", apiKey: "key"},
		{name: "relative url", url: "n8n.example.com", wantErr: "absolute http(s) URL"},
		{name: "bad scheme", url: "ftp://n8n.example.com", apiKey: "key", wantErr: "absolute http(s) URL"},
		{name: "url without key", url: "https://n8n.example.com", wantErr: "n8n.api_key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.N8n.URL = tt.url
			cfg.N8n.APIKey = tt.apiKey

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetVersionInfo(t *testing.T) {
	assert.Contains(t, GetVersionInfo(), "n8n-mcp version")
}
