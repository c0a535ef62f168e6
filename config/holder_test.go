package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cloudmeter/cloudmeter/config"
)

func TestHolder_GetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudmeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("billing:\n  role: billing\n"), 0o644))

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	require.Equal(t, "billing", h.Get().Billing.Role)

	var notified *config.Config
	h.OnChange(func(cfg *config.Config) { notified = cfg })

	require.NoError(t, os.WriteFile(path, []byte("billing:\n  role: finance\n"), 0o644))
	require.NoError(t, h.Reload())

	require.Equal(t, "finance", h.Get().Billing.Role)
	require.NotNil(t, notified)
	require.Equal(t, "finance", notified.Billing.Role)
}

func TestHolder_ReloadFailureKeepsOldConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudmeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("billing:\n  role: billing\n"), 0o644))

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))
	require.Error(t, h.Reload())
	require.Equal(t, "billing", h.Get().Billing.Role)
}

func TestHolder_MissingFile(t *testing.T) {
	_, err := config.NewHolder(filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop())
	require.Error(t, err)
}

func TestReloadableFields(t *testing.T) {
	require.Contains(t, config.ReloadableFields(), "billing.role")
	require.Contains(t, config.NonReloadableFields(), "database.dsn")
}
