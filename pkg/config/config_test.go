package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1.75, cfg.ZScoreCutoff)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SNAPDB_LISTEN", "127.0.0.1:9999")
	t.Setenv("SNAPDB_ZSCORE_CUTOFF", "2.5")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, 2.5, cfg.ZScoreCutoff)
}
