package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instancecore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
instance:
  dir: instances/frozen_spire
  affiliation: horde
  raid_size: 25
tick:
  interval: 100ms
log:
  level: debug
  format: json
feed:
  addr: ":8089"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "instances/frozen_spire", cfg.Instance.Dir)
	assert.Equal(t, "horde", cfg.Instance.Affiliation)
	assert.Equal(t, 25, cfg.Instance.RaidSize)
	assert.Equal(t, ".", cfg.Instance.SaveDir, "unset keys keep defaults")
	assert.Equal(t, 100*time.Millisecond, cfg.Tick.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8089", cfg.Feed.Addr)
	assert.Equal(t, 64, cfg.Feed.Buffer)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "tick: [",
		"zero interval": "tick:\n  interval: 0s\n",
		"raid size":     "instance:\n  raid_size: 0\n",
		"format":        "log:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	log, err := NewLogger(LogConfig{Level: "warn", Format: "json", File: path})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log.Warn("door stuck")
	require.NoError(t, log.Sync())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"door stuck"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "loud", Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
