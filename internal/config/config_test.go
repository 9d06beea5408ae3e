package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cajero.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.AuthRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.AuthRetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.LogoutAckTimeout)
	assert.Equal(t, int64(5<<20), cfg.MaxEvidenceBytes)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeConfig(t, `
server_url: ws://localhost:3001/ws
api_base_url: http://localhost:3001
auth_retry_delay: 500ms
default_minimum_deposit: 25.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3001/ws", cfg.ServerURL)
	assert.Equal(t, 500*time.Millisecond, cfg.AuthRetryDelay)
	assert.Equal(t, 25.5, cfg.DefaultMinimumDeposit)
	assert.Equal(t, 10*time.Second, cfg.AdjustAckGuard)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "server_ulr: ws://x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_ulr")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: warn\nauth_retry_attempts: 3\n")
	t.Setenv("CAJERO_LOG_LEVEL", "debug")
	t.Setenv("CAJERO_OPERATION_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.AuthRetryAttempts)
	assert.Equal(t, 45*time.Second, cfg.OperationTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http server url", func(c *Config) { c.ServerURL = "http://example.com" }},
		{"ws api url", func(c *Config) { c.APIBaseURL = "ws://example.com" }},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero retries", func(c *Config) { c.AuthRetryAttempts = 0 }},
		{"zero retry delay", func(c *Config) { c.AuthRetryDelay = 0 }},
		{"negative operation timeout", func(c *Config) { c.OperationTimeout = -time.Second }},
		{"zero minimum", func(c *Config) { c.DefaultMinimumDeposit = 0 }},
		{"huge evidence", func(c *Config) { c.MaxEvidenceBytes = 100 << 20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ZeroOperationTimeoutAllowed(t *testing.T) {
	cfg := Default()
	cfg.OperationTimeout = 0
	assert.NoError(t, cfg.Validate())
}
