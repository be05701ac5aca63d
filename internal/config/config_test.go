package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.AnalyticsURL)
	assert.Equal(t, 30*time.Second, cfg.AnalyticsTimeout)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.AnalyticsTokenSecret, "secrets must not have literal defaults")
	assert.Empty(t, cfg.SMTPPassword)
	assert.False(t, cfg.SMTPEnabled())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ANALYTICS_URL", "http://analytics:9000")
	t.Setenv("ANALYTICS_TIMEOUT", "5s")
	t.Setenv("ANALYTICS_RETRIES", "0")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_CONN", "host=db dbname=cashflow sslmode=disable")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://analytics:9000", cfg.AnalyticsURL)
	assert.Equal(t, 5*time.Second, cfg.AnalyticsTimeout)
	assert.Equal(t, 0, cfg.AnalyticsRetries)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
}

func TestNewConfig_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "9090"
analytics_url: http://provider:8000
analytics_timeout: 12s
reminder_lead_days: 3
smtp_host: smtp.example.com
sender_email: bot@example.com
reminder_email: finance@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://provider:8000", cfg.AnalyticsURL)
	assert.Equal(t, 12*time.Second, cfg.AnalyticsTimeout)
	assert.Equal(t, 3, cfg.ReminderLeadDays)
	assert.True(t, cfg.SMTPEnabled())
	// untouched keys keep their env defaults
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad url", map[string]string{"ANALYTICS_URL": "not a url"}},
		{"empty url", map[string]string{"ANALYTICS_URL": ""}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mysql"}},
		{"zero timeout", map[string]string{"ANALYTICS_TIMEOUT": "0s"}},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
