package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.PacingWindow())
	assert.Equal(t, 20, cfg.PerPage())
	require.NoError(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	var cfg Config
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.PacingWindow())
	assert.Equal(t, 20, cfg.PerPage())

	cfg.Session.IdleTimeout = "30m"
	cfg.Courtship.PacingWindow = "24h"
	cfg.Pagination.PerPage = 5
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 24*time.Hour, cfg.PacingWindow())
	assert.Equal(t, 5, cfg.PerPage())
}

func TestValidateRejectsBadDurations(t *testing.T) {
	var cfg Config
	cfg.Session.IdleTimeout = "soon"
	require.Error(t, cfg.Validate())

	cfg = Config{}
	cfg.Courtship.PacingWindow = "-1h"
	require.Error(t, cfg.Validate())

	cfg = Config{}
	cfg.Pagination.PerPage = -1
	require.Error(t, cfg.Validate())
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("session:\n  idle_timeout: 2m\n"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout())

	_, err = FromYAML([]byte(":\n:"))
	require.Error(t, err)
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "courtline.yml"), []byte("pagination:\n  per_page: 3\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.PerPage())

	_, err = Load(t.TempDir())
	require.Error(t, err)
}
