package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/dispatch?sslmode=disable"

dispatch:
  tick_seconds: 15
  concurrency: 4

rate_limit:
  enabled: true
  per_minute: 60

gateway:
  type: "whatsapp"
  base_url: "https://gateway.example.com"
  token: "secret-token"

messaging:
  default_region: "US"
  currency_symbol: "$"
  decimal_separator: "."
  thousands_separator: ","

storage:
  type: "local"
  local_path: "./test-data"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/dispatch?sslmode=disable", cfg.Database.URL)

	assert.Equal(t, 15, cfg.Dispatch.TickSeconds)
	assert.Equal(t, 4, cfg.Dispatch.Concurrency)
	// unspecified dispatch values fall back to defaults
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Zero(t, cfg.RateLimit.PerSecond)

	assert.Equal(t, "whatsapp", cfg.Gateway.Type)
	assert.Equal(t, "https://gateway.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, "secret-token", cfg.Gateway.Token)

	assert.Equal(t, "US", cfg.Messaging.DefaultRegion)
	assert.Equal(t, "$", cfg.Messaging.CurrencySymbol)

	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./test-data", cfg.Storage.LocalPath)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("{}"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60, cfg.Dispatch.TickSeconds)
	assert.Equal(t, 8, cfg.Dispatch.Concurrency)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, 300, cfg.Dispatch.ClaimStaleAfterSeconds)
	assert.Equal(t, "console", cfg.Gateway.Type)
	assert.Equal(t, "BR", cfg.Messaging.DefaultRegion)
	assert.Equal(t, "R$", cfg.Messaging.CurrencySymbol)
	assert.Equal(t, ",", cfg.Messaging.DecimalSeparator)
	assert.Equal(t, ".", cfg.Messaging.ThousandsSeparator)
	assert.Equal(t, "none", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_URL", "redis://env:6379/0")
	t.Setenv("GATEWAY_BASE_URL", "https://env-gateway")
	t.Setenv("GATEWAY_TOKEN", "env-token")
	t.Setenv("WEBHOOK_SECRET", "env-secret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "redis://env:6379/0", cfg.Redis.URL)
	assert.Equal(t, "https://env-gateway", cfg.Gateway.BaseURL)
	assert.Equal(t, "env-token", cfg.Gateway.Token)
	assert.Equal(t, "env-secret", cfg.Webhook.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadFromEnv_BadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStorageConfig_GetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("AWS_PROFILE_OVERRIDE", "")

	c := StorageConfig{AWSProfile: "dev"}
	assert.Equal(t, "dev", c.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", c.GetAWSProfile())
}
