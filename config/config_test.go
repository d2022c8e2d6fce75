package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "long", cfg.Server.MonthStyle)
	assert.Equal(t, 200.0, cfg.Display.ChartSize)
	assert.Equal(t, -90.0, cfg.Display.AxisOffset)
	assert.Equal(t, 26, cfg.Display.SpriteFrames)
	assert.Equal(t, 5*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 6*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, 365*24*time.Hour, cfg.Database.Retention)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  default_location: Tokyo
display:
  sprite_frames: 30
collector:
  enabled: true
  locations: [Tokyo, Lima]
`), 0o644))
	t.Setenv("MOONWATCH_SERVER_LOCALE", "ja")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "Tokyo", cfg.Server.DefaultLocation)
	assert.Equal(t, "ja", cfg.Server.Locale)
	assert.Equal(t, 30, cfg.Display.SpriteFrames)
	assert.Equal(t, 200, cfg.Display.SpriteFrameWidth)
	assert.Equal(t, []string{"Tokyo", "Lima"}, cfg.Collector.Locations)
}
