package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsUsable(t *testing.T) {
	cfg := Default()
	require.Positive(t, cfg.BufferPool.PoolSize)
	require.Positive(t, cfg.BufferPool.ReplacerK)
	require.NotEmpty(t, cfg.Disk.DataFile)
	require.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_OverridesOnlyProvidedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duskdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buffer_pool:
  pool_size: 128
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 128, cfg.BufferPool.PoolSize)
	require.Equal(t, Default().BufferPool.ReplacerK, cfg.BufferPool.ReplacerK)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, Default().Logging.Format, cfg.Logging.Format)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
