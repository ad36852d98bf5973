package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-team/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Team.Device)
	assert.Equal(t, "/run/teamctl/teamctl.lock", cfg.Team.LockFile)
	assert.Empty(t, cfg.Monitor.MetricsAddress)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
[team]
device = "team0"

[monitor]
metrics_address = "127.0.0.1:9417"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "team0", cfg.Team.Device)
	assert.Equal(t, "127.0.0.1:9417", cfg.Monitor.MetricsAddress)
	assert.Equal(t, "info", cfg.Logging.Level, "keys absent from the file keep their defaults")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":          "[team\ndevice = 1",
		"unknown key":     "[team]\nname = \"team0\"",
		"bad level":       "[logging]\nlevel = \"chatty\"",
		"bad format":      "[logging]\nformat = \"xml\"",
		"bad metrics":     "[monitor]\nmetrics_address = \"9417\"",
		"empty lock file": "[team]\nlock_file = \"\"",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoggingConfig_Spec(t *testing.T) {
	c := config.LoggingConfig{Components: map[string]string{"session": "debug", "codec": "trace"}}
	assert.Equal(t, "info,codec=trace,session=debug", c.Spec())

	c.Level = "warn"
	assert.Equal(t, "warn", c.Spec())

	assert.Empty(t, config.LoggingConfig{}.Spec())
}
