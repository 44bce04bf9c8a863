package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeConfig(t, `
logger:
  verbosity: debug
runtime:
  preferredVendor: nvidia
  deviceIndex: 1
bench:
  size: 65536
  iterations: 4
`)
		config, err := LoadConfig(path)
		require.NoError(t, err)
		require.NotNil(t, config)

		assert.Equal(t, "debug", config.Logger.Verbosity)
		assert.Equal(t, "nvidia", config.Runtime.PreferredVendor)
		assert.Equal(t, 1, config.Runtime.DeviceIndex)
		assert.Equal(t, 65536, config.Bench.Size)
		assert.Equal(t, 4, config.Bench.Iterations)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "logger:\n  verbosity: warn\n")
		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", config.Logger.Verbosity)
		assert.Equal(t, Default().Bench.Size, config.Bench.Size)
		assert.Equal(t, Default().Bench.Iterations, config.Bench.Iterations)
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := LoadConfig("non-existent-file.yaml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "logger: [not a mapping\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Logger.Verbosity)
	assert.NotZero(t, cfg.Bench.Size)
	assert.NotZero(t, cfg.Bench.Iterations)
}
