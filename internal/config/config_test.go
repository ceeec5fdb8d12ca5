package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests mutate process env, so they do not run in parallel.

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PYRAMIDVIEW_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "share", "pyramidview", "catalog.db"), cfg.Database.Path)
	require.Equal(t, 30*time.Second, cfg.Loader.HTTPTimeout)
	require.Equal(t, 10*time.Minute, cfg.Stats.CacheTTL)
	require.Equal(t, "tiff", cfg.Viewer.DefaultSource)
	require.Equal(t, 6, cfg.Viewer.MaxChannels)
	require.Equal(t, 1.0, cfg.Viewer.ScaleWidth)
	require.Empty(t, cfg.Metrics.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PYRAMIDVIEW_CONFIG", "")
	t.Setenv("PYRAMIDVIEW_VIEWER_DEFAULT_SOURCE", "static")
	t.Setenv("PYRAMIDVIEW_LOADER_HTTP_TIMEOUT", "5s")
	t.Setenv("PYRAMIDVIEW_METRICS_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "static", cfg.Viewer.DefaultSource)
	require.Equal(t, 5*time.Second, cfg.Loader.HTTPTimeout)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pv", "config.toml")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PYRAMIDVIEW_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Viewer.DefaultSource = "zarr"
	cfg.Viewer.MaxChannels = 4
	cfg.Stats.CacheTTL = time.Minute
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestLoadRejectsBadViewerSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PYRAMIDVIEW_CONFIG", "")
	t.Setenv("PYRAMIDVIEW_VIEWER_MAX_CHANNELS", "0")

	_, err := Load()
	require.ErrorContains(t, err, "max_channels")
}
