package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hw-inventory/internal/models"
)

func TestLoad_RequiresDSNAndSecret(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("SESSION_SECRET", "secret")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")

	t.Setenv("DB_DSN", "host=localhost")
	t.Setenv("SESSION_SECRET", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "host=localhost")
	t.Setenv("SESSION_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "inventory_session", cfg.SessionCookieName)
	assert.Equal(t, 8, cfg.SessionExpireHours)
	assert.Equal(t, 5*time.Second, cfg.AccessLogTimeout)
	assert.EqualValues(t, 10<<20, cfg.AccessLogMaxBodyBytes)
	assert.Equal(t, DefaultSkipPaths, cfg.AuditSkipPaths)
	assert.Equal(t, 2, cfg.StockThresholds[models.ModelMFF])
	assert.Equal(t, 3, cfg.StockThresholds[models.ModelMonitor])
	assert.Len(t, cfg.StockThresholds, len(models.HardwareModels))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "file:inv.db")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("AUDIT_SKIP_PATHS", " /health, /static/ ,,")
	t.Setenv("ACCESS_LOG_TIMEOUT", "250ms")
	t.Setenv("AUDIT_MAX_BODY_BYTES", "4096")
	t.Setenv("THRESHOLD_NOTEBOOK", "9")
	t.Setenv("BASE_URL", "https://inventory.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"/health", "/static/"}, cfg.AuditSkipPaths)
	assert.Equal(t, 250*time.Millisecond, cfg.AccessLogTimeout)
	assert.EqualValues(t, 4096, cfg.AccessLogMaxBodyBytes)
	assert.Equal(t, 9, cfg.StockThresholds[models.ModelNotebook])
	assert.Equal(t, "https://inventory.example.com", cfg.BaseURL)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DSN", "x")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("SESSION_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}
