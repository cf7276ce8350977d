package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1883\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, byte(2), cfg.QoS.MaxQoS)
	require.Equal(t, 512, cfg.Limits.QueueCapacity)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 99999\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsTLSWithoutCerts(t *testing.T) {
	path := writeConfig(t, "tls:\n  enabled: true\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMetricsPortCollidingWithServerPort(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 1883\nmetrics:\n  enabled: true\n  port: 1883\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
