package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudmeter/cloudmeter/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudmeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
database:
  dsn: /var/lib/cloudmeter/snapshot.db
graphite:
  url: http://graphite.internal:8080
  timezone: America/Toronto
billing:
  role: billing
  fail_on_degraded_metrics: true
logging:
  level: debug
  format: console
metrics:
  enabled: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "/var/lib/cloudmeter/snapshot.db", cfg.Database.DSN)
	require.Equal(t, "http://graphite.internal:8080", cfg.Graphite.URL)
	require.Equal(t, "America/Toronto", cfg.Graphite.Timezone)
	require.True(t, cfg.Billing.FailOnDegradedMetrics)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "cloudmeter.db", cfg.Database.DSN)
	require.Empty(t, cfg.Graphite.URL, "object storage disabled by default")
	require.Equal(t, "UTC", cfg.Graphite.Timezone)
	require.Equal(t, 10*time.Second, cfg.Graphite.Timeout)
	require.Equal(t, "billing", cfg.Billing.Role)
	require.False(t, cfg.Billing.FailOnDegradedMetrics)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.False(t, cfg.Metrics.Enabled)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SNAPSHOT_DB", "/data/august.db")
	path := writeConfig(t, `
database:
  dsn: ${SNAPSHOT_DB}
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/august.db", cfg.Database.DSN)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLOUDMETER_SERVER_PORT", "9999")
	t.Setenv("CLOUDMETER_BILLING_ROLE", "finance")
	t.Setenv("CLOUDMETER_BILLING_FAIL_ON_DEGRADED", "yes")
	t.Setenv("CLOUDMETER_GRAPHITE_URL", "http://override:8080")

	cfg, err := config.Load(writeConfig(t, `
server:
  port: 1234
billing:
  role: billing
`))
	require.NoError(t, err)

	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "finance", cfg.Billing.Role)
	require.True(t, cfg.Billing.FailOnDegradedMetrics)
	require.Equal(t, "http://override:8080", cfg.Graphite.URL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLOUDMETER_DATABASE_DSN", "/data/env.db")
	t.Setenv("CLOUDMETER_LOG_LEVEL", "warn")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, "/data/env.db", cfg.Database.DSN)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("CLOUDMETER_DATABASE_DSN", "/data/fallback.db")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/data/fallback.db", cfg.Database.DSN)

	// With a file present, file values load; env overrides still win.
	path := writeConfig(t, "server:\n  port: 7777\n")
	cfg, err = config.LoadWithFallback(path)
	require.NoError(t, err)
	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, "/data/fallback.db", cfg.Database.DSN)
}
