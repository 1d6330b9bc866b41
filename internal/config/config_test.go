package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toleubekov/kitchen-sync/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080

stream:
  retention: 512

session:
  backlog_size: 16
  heartbeat_interval_sec: 5
  reconnect:
    base_interval_ms: 500
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 512, cfg.Stream.Retention)
	require.Equal(t, 16, cfg.Session.BacklogSize)
	require.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval())
	require.Equal(t, 500, cfg.Session.Reconnect.BaseIntervalMs)

	// Untouched sections keep their defaults.
	require.Equal(t, 45*time.Second, cfg.Session.HeartbeatTimeout())
	require.Equal(t, 5*time.Second, cfg.Session.WriteTimeout())
	require.Equal(t, 30*time.Second, cfg.Session.ResumeGrace())
	require.Equal(t, "*/5 * * * * *", cfg.Transition.SweepSchedule)
	require.Equal(t, 100, cfg.Transition.SweepBatchLimit)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := config.Load(path)
	require.Error(t, err)
}
