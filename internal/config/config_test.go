package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: memory
pricing:
  default_tax_rate: "0.2"
auth:
  jwt_secret: file-secret
lark:
  recipients:
    client-a: ou_123
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "0.2", cfg.Pricing.DefaultTaxRate)
	assert.Equal(t, 30, cfg.Pricing.PaymentTermsDays)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "log", cfg.Notification.Transport)
	assert.Equal(t, "ou_123", cfg.Lark.Recipients["client-a"])
	assert.Equal(t, 5, cfg.Worker.MaxAttempts)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "env-secret")
	t.Setenv("LARK_APP_ID", "cli_env")

	cfg, err := Load(writeConfig(t, "auth:\n  jwt_secret: file-secret\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "cli_env", cfg.Lark.AppID)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server:\n  port: 8080\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = Load(writeConfig(t, "auth:\n  jwt_secret: s\nnotification:\n  transport: lark\n"))
	assert.ErrorContains(t, err, "lark")
}

func TestToContainerConfig(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Database.Driver = "memory"

	cc, err := cfg.ToContainerConfig()
	require.NoError(t, err)
	require.NoError(t, cc.Validate())
	assert.True(t, cc.Pricing.DefaultTaxRate.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, cfg.Worker.PollInterval, cc.Worker.RetryPollInterval)

	cfg.Pricing.DefaultTaxRate = "fifteen"
	_, err = cfg.ToContainerConfig()
	assert.Error(t, err)
}
