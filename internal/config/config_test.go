package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "litra", cfg.Litra.Binary)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout())
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval())
	assert.Equal(t, 5.0, cfg.Litra.RateLimit)
	assert.Equal(t, "routines", cfg.RoutinesDir)
	assert.Equal(t, "presets.json", cfg.PresetsFile)
	assert.Equal(t, "litra", cfg.MQTT.TopicPrefix)
}

func TestLoadAppliesFileValuesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"server": {"port": " 9000 "},
		"litra": {"binary": "/usr/local/bin/litra", "command_timeout": "2s"},
		"mqtt": {"enabled": true, "broker": "tcp://10.0.0.2:1883"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "/usr/local/bin/litra", cfg.Litra.Binary)
	assert.Equal(t, 2*time.Second, cfg.CommandTimeout())
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTT.Broker)
	// Gaps get defaults.
	assert.Equal(t, "30s", cfg.Litra.RefreshInterval)
	assert.Equal(t, "schedules.json", cfg.SchedulesFile)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"litra": {"command_timeout": "soon"}}`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
