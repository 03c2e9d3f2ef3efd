package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wingmav_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
# minimal deployment
MQTT_BROKER=tcp://localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "/dev/ttyUSB0", cfg.LinkMaster)
	assert.Equal(t, 115200, cfg.LinkBaud)
	assert.Equal(t, []string{"udp:127.0.0.1:14550"}, cfg.LinkOuts, "default relay endpoint")
	assert.Equal(t, "GUIDED", cfg.AugmentedMode)
	assert.Equal(t, []string{"LOITER", "STABILIZE"}, cfg.FallbackModes)
	assert.Equal(t, []string{"GUIDED"}, cfg.ExcludedModes)
	assert.True(t, cfg.ModeSwitchingEnabled)
	assert.Equal(t, 5000, cfg.RestartDelay)
	assert.Equal(t, 60000, cfg.BackoffMax)
	assert.Equal(t, 3, cfg.DisableJoystickAfter)
	assert.Equal(t, 5, cfg.EnableDiagnosticsAfter)
	assert.Equal(t, 120000, cfg.SuccessReset)
	assert.Equal(t, 10000, cfg.StopGrace)
	assert.Equal(t, 42, cfg.ModuleFailureExit)
	assert.Equal(t, 50, cfg.TickInterval)
	assert.Equal(t, 500.0, cfg.OverrideGain)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://broker:1883
LINK_MASTER=udp:0.0.0.0:14551
LINK_BAUD=57600
LINK_OUT=udp:10.0.0.1:14550
LINK_OUT=udp:10.0.0.2:14550
MODE_SWITCHING_ENABLED=false
AUGMENTED_MODE=guided_nogps
FALLBACK_MODES=alt_hold, stabilize
EXCLUDED_MODES=GUIDED,GUIDED_NOGPS
OVERRIDE_GAIN=400
OVERRIDE_DEADBAND=0.05
CHANNEL_ROLL=2
CHANNEL_PITCH=1
CHANNEL_THROTTLE=3
CHANNEL_YAW=4
RESTART_DELAY=1000
BACKOFF_MAX=30000
DIAGNOSTIC_ARGS=--show-errors --mav20
DEBUG=true
LOG_FILE=/tmp/wingmav.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "udp:0.0.0.0:14551", cfg.LinkMaster)
	assert.Equal(t, 57600, cfg.LinkBaud)
	assert.Equal(t, []string{"udp:10.0.0.1:14550", "udp:10.0.0.2:14550"}, cfg.LinkOuts)
	assert.False(t, cfg.ModeSwitchingEnabled)
	assert.Equal(t, "GUIDED_NOGPS", cfg.AugmentedMode, "modes are upper-cased")
	assert.Equal(t, []string{"ALT_HOLD", "STABILIZE"}, cfg.FallbackModes)
	assert.Equal(t, []string{"GUIDED", "GUIDED_NOGPS"}, cfg.ExcludedModes)
	assert.Equal(t, 400.0, cfg.OverrideGain)
	assert.Equal(t, 0.05, cfg.OverrideDeadband)
	assert.Equal(t, 2, cfg.Channels().Roll)
	assert.Equal(t, 1, cfg.Channels().Pitch)
	assert.Equal(t, []string{"--show-errors", "--mav20"}, cfg.DiagnosticArgs)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/wingmav.log", cfg.LogFile)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\nNOT_A_KEY=1\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\nthis is not a config line\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config line")
}

func TestLoadRejectsBadNumber(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\nLINK_BAUD=fast\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINK_BAUD")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestValidateRequiresBroker(t *testing.T) {
	path := writeConfig(t, "LINK_BAUD=115200\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER")
}

func TestValidateRejectsDuplicateChannels(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
CHANNEL_ROLL=1
CHANNEL_PITCH=1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel mapping")
}

func TestValidateRejectsBackoffMaxBelowBase(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
RESTART_DELAY=5000
BACKOFF_MAX=1000
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKOFF_MAX")
}

func TestValidateRejectsEmptyFallback(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
FALLBACK_MODES=
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FALLBACK_MODES")
}

func TestValidateRejectsBadDeadband(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
OVERRIDE_DEADBAND=1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OVERRIDE_DEADBAND")
}
