package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, 64, cfg.Storage.BufferPoolSize)
	require.Equal(t, "info", cfg.Logger.Level)
	require.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
storage:
  page_size: 8192
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, 8192, cfg.Storage.PageSize)
	// Fields the file leaves unset keep their defaults.
	require.Equal(t, "console", cfg.Logger.Format)
	require.Equal(t, 64, cfg.Storage.BufferPoolSize)
	require.Equal(t, "data", cfg.Storage.DataDir)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: warn
  format: json
  output_file: stdout
telemetry:
  enabled: true
  service_name: heapdb-test
  prometheus_port: 9999
storage:
  page_size: 1024
  buffer_pool_size: 16
  data_dir: /tmp/heapdb
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "json", cfg.Logger.Format)
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, 9999, cfg.Telemetry.PrometheusPort)
	require.Equal(t, 16, cfg.Storage.BufferPoolSize)
	require.Equal(t, "/tmp/heapdb", cfg.Storage.DataDir)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  page_size: -1\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  buffer_pool_size: 0\n"))
	require.Error(t, err)

	// Slot offsets are 16-bit; wider pages would wrap silently.
	_, err = Load(writeConfig(t, "storage:\n  page_size: 65536\n"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, "storage:\n  page_size: 65535\n"))
	require.NoError(t, err)

	_, err = Load(writeConfig(t, "not: [valid: yaml"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
