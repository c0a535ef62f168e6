package bootstrap_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudmeter/cloudmeter/bootstrap"
	"github.com/cloudmeter/cloudmeter/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cloudmeter.db")},
		Billing:  config.BillingConfig{Role: "billing"},
		Logging:  config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func TestNew(t *testing.T) {
	a, err := bootstrap.New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.DB)
	require.NotNil(t, a.Reports)
	require.NotNil(t, a.HTTPServer)
	require.Nil(t, a.Metrics, "metrics disabled by default")

	// The database must be migrated and usable.
	var n int
	require.NoError(t, a.DB.QueryRow("SELECT COUNT(*) FROM compute_instances").Scan(&n))
	require.Zero(t, n)
}

func TestNew_ServesHealth(t *testing.T) {
	a, err := bootstrap.New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.HTTPServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestNew_ReportEndpointWithEmptySnapshot(t *testing.T) {
	a, err := bootstrap.New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/reports?user=alice&from=2016-08-01&until=2016-09-01", nil)
	a.HTTPServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"rows"`)
}
