package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 16*time.Millisecond, cfg.Server.BroadcastInterval)
	assert.Equal(t, 2*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 60, cfg.Game.TargetTPS)
	assert.Equal(t, 250*time.Millisecond, cfg.Game.MaxFrameDelta)
	assert.False(t, cfg.HUD.Enabled)
	assert.False(t, cfg.Influx.Enabled)
	assert.Equal(t, "telemetry", cfg.Influx.Bucket)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xdrive.json")
	body := `{
		"logLevel": "debug",
		"server": { "addr": ":9090", "broadcastInterval": "50ms" },
		"game": { "targetTps": 30 },
		"hud": { "enabled": true }
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.BroadcastInterval)
	assert.Equal(t, 30, cfg.Game.TargetTPS)
	assert.True(t, cfg.HUD.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, "./dist", cfg.Server.StaticDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDRIVE_GAME_TARGETTPS", "120")
	t.Setenv("XDRIVE_SERVER_ADDR", ":7000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Game.TargetTPS)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"game": {"targetTps": 0}}`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targetTps")
}
