// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/wingmav_link/internal/rcoverride"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDControl    string
	MQTTClientIDSupervisor string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string

	// Topics
	TopicEvents           string
	TopicStatusSupervisor string
	TopicCmdOverride      string
	TopicCmdMode          string
	TopicCmdAction        string
	TopicVehicleMode      string
	TopicJoystick         string

	// Link (MAVLink master + relay outputs)
	LinkMaster     string
	LinkBaud       int
	LinkOuts       []string
	MAVProxyBin    string
	RunnerBin      string
	DiagnosticArgs []string

	// Engagement
	ModeSwitchingEnabled bool
	AugmentedMode        string
	FallbackModes        []string
	ExcludedModes        []string
	TickInterval         int // milliseconds
	OverrideGain         float64
	OverrideDeadband     float64
	JoystickTimeout      int // milliseconds without input before disconnect
	ChannelRoll          int
	ChannelPitch         int
	ChannelThrottle      int
	ChannelYaw           int

	// Supervisor
	RestartDelay           int // milliseconds, backoff base
	BackoffMax             int // milliseconds, backoff cap
	DisableJoystickAfter   int
	EnableDiagnosticsAfter int
	SuccessReset           int // milliseconds of sustained uptime
	StopGrace              int // milliseconds
	ModuleFailureExit      int
	PreflightSerial        bool

	// Web
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds

	// Logging
	Debug   bool
	LogFile string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults matches the standard deployment: serial master on ttyUSB0 at
// 115200 baud, one local UDP relay output, ArduPilot channel layout.
func defaults() *Config {
	return &Config{
		MQTTClientIDControl:    "wingmav-control",
		MQTTClientIDSupervisor: "wingmav-supervisor",
		MQTTClientIDConsole:    "wingmav-console",
		MQTTClientIDWeb:        "wingmav-web",
		MQTTClientIDDisplay:    "wingmav-display",

		TopicEvents:           "wingmav/events",
		TopicStatusSupervisor: "wingmav/status/supervisor",
		TopicCmdOverride:      "wingmav/cmd/override",
		TopicCmdMode:          "wingmav/cmd/mode",
		TopicCmdAction:        "wingmav/cmd/action",
		TopicVehicleMode:      "wingmav/vehicle/mode",
		TopicJoystick:         "wingmav/joystick",

		LinkMaster:     "/dev/ttyUSB0",
		LinkBaud:       115200,
		MAVProxyBin:    "mavproxy.py",
		RunnerBin:      "wingmav-proxy",
		DiagnosticArgs: []string{"--show-errors"},

		ModeSwitchingEnabled: true,
		AugmentedMode:        "GUIDED",
		FallbackModes:        []string{"LOITER", "STABILIZE"},
		ExcludedModes:        []string{"GUIDED"},
		TickInterval:         50,
		OverrideGain:         500,
		OverrideDeadband:     0.01,
		JoystickTimeout:      500,
		ChannelRoll:          1,
		ChannelPitch:         2,
		ChannelThrottle:      3,
		ChannelYaw:           4,

		RestartDelay:           5000,
		BackoffMax:             60000,
		DisableJoystickAfter:   3,
		EnableDiagnosticsAfter: 5,
		SuccessReset:           120000,
		StopGrace:              10000,
		ModuleFailureExit:      42,
		PreflightSerial:        true,

		WebServerPort: 8080,

		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if len(cfg.LinkOuts) == 0 {
		cfg.LinkOuts = []string{"udp:127.0.0.1:14550"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROL":
		c.MQTTClientIDControl = value
	case "MQTT_CLIENT_ID_SUPERVISOR":
		c.MQTTClientIDSupervisor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_STATUS_SUPERVISOR":
		c.TopicStatusSupervisor = value
	case "TOPIC_CMD_OVERRIDE":
		c.TopicCmdOverride = value
	case "TOPIC_CMD_MODE":
		c.TopicCmdMode = value
	case "TOPIC_CMD_ACTION":
		c.TopicCmdAction = value
	case "TOPIC_VEHICLE_MODE":
		c.TopicVehicleMode = value
	case "TOPIC_JOYSTICK":
		c.TopicJoystick = value

	// Link
	case "LINK_MASTER":
		c.LinkMaster = value
	case "LINK_BAUD":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LINK_BAUD %q: %w", value, err)
		}
		c.LinkBaud = baud
	case "LINK_OUT":
		// May be given multiple times, one endpoint per line.
		c.LinkOuts = append(c.LinkOuts, value)
	case "MAVPROXY_BIN":
		c.MAVProxyBin = value
	case "RUNNER_BIN":
		c.RunnerBin = value
	case "DIAGNOSTIC_ARGS":
		c.DiagnosticArgs = strings.Fields(value)

	// Engagement
	case "MODE_SWITCHING_ENABLED":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MODE_SWITCHING_ENABLED %q: %w", value, err)
		}
		c.ModeSwitchingEnabled = b
	case "AUGMENTED_MODE":
		c.AugmentedMode = strings.ToUpper(value)
	case "FALLBACK_MODES":
		c.FallbackModes = splitModes(value)
	case "EXCLUDED_MODES":
		c.ExcludedModes = splitModes(value)
	case "TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL %q: %w", value, err)
		}
		c.TickInterval = interval
	case "OVERRIDE_GAIN":
		gain, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid OVERRIDE_GAIN %q: %w", value, err)
		}
		c.OverrideGain = gain
	case "OVERRIDE_DEADBAND":
		db, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid OVERRIDE_DEADBAND %q: %w", value, err)
		}
		c.OverrideDeadband = db
	case "JOYSTICK_TIMEOUT":
		timeout, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid JOYSTICK_TIMEOUT %q: %w", value, err)
		}
		c.JoystickTimeout = timeout
	case "CHANNEL_ROLL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CHANNEL_ROLL %q: %w", value, err)
		}
		c.ChannelRoll = ch
	case "CHANNEL_PITCH":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CHANNEL_PITCH %q: %w", value, err)
		}
		c.ChannelPitch = ch
	case "CHANNEL_THROTTLE":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CHANNEL_THROTTLE %q: %w", value, err)
		}
		c.ChannelThrottle = ch
	case "CHANNEL_YAW":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CHANNEL_YAW %q: %w", value, err)
		}
		c.ChannelYaw = ch

	// Supervisor
	case "RESTART_DELAY":
		delay, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RESTART_DELAY %q: %w", value, err)
		}
		c.RestartDelay = delay
	case "BACKOFF_MAX":
		maxMs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BACKOFF_MAX %q: %w", value, err)
		}
		c.BackoffMax = maxMs
	case "DISABLE_JOYSTICK_AFTER":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISABLE_JOYSTICK_AFTER %q: %w", value, err)
		}
		c.DisableJoystickAfter = n
	case "ENABLE_DIAGNOSTICS_AFTER":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ENABLE_DIAGNOSTICS_AFTER %q: %w", value, err)
		}
		c.EnableDiagnosticsAfter = n
	case "SUCCESS_RESET":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SUCCESS_RESET %q: %w", value, err)
		}
		c.SuccessReset = ms
	case "STOP_GRACE":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STOP_GRACE %q: %w", value, err)
		}
		c.StopGrace = ms
	case "MODULE_FAILURE_EXIT":
		code, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MODULE_FAILURE_EXIT %q: %w", value, err)
		}
		c.ModuleFailureExit = code
	case "PREFLIGHT_SERIAL":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid PREFLIGHT_SERIAL %q: %w", value, err)
		}
		c.PreflightSerial = b

	// Web
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "DEBUG":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DEBUG %q: %w", value, err)
		}
		c.Debug = b
	case "LOG_FILE":
		c.LogFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate checks the configuration is usable. Any error here is fatal
// at startup; the rest of the system assumes a validated configuration.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.LinkMaster == "" {
		return fmt.Errorf("LINK_MASTER is required")
	}
	if c.LinkBaud <= 0 {
		return fmt.Errorf("LINK_BAUD must be positive, got %d", c.LinkBaud)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %d", c.TickInterval)
	}
	if c.OverrideGain <= 0 {
		return fmt.Errorf("OVERRIDE_GAIN must be positive, got %g", c.OverrideGain)
	}
	if c.OverrideDeadband < 0 || c.OverrideDeadband >= 1 {
		return fmt.Errorf("OVERRIDE_DEADBAND must be in [0,1), got %g", c.OverrideDeadband)
	}
	if c.JoystickTimeout <= 0 {
		return fmt.Errorf("JOYSTICK_TIMEOUT must be positive, got %d", c.JoystickTimeout)
	}
	if c.AugmentedMode == "" {
		return fmt.Errorf("AUGMENTED_MODE is required")
	}
	if len(c.FallbackModes) == 0 {
		return fmt.Errorf("FALLBACK_MODES must name at least one mode")
	}
	if err := c.Channels().Validate(); err != nil {
		return fmt.Errorf("channel mapping: %w", err)
	}
	if c.RestartDelay <= 0 {
		return fmt.Errorf("RESTART_DELAY must be positive, got %d", c.RestartDelay)
	}
	if c.BackoffMax < c.RestartDelay {
		return fmt.Errorf("BACKOFF_MAX (%d) must not be below RESTART_DELAY (%d)", c.BackoffMax, c.RestartDelay)
	}
	if c.DisableJoystickAfter <= 0 {
		return fmt.Errorf("DISABLE_JOYSTICK_AFTER must be positive, got %d", c.DisableJoystickAfter)
	}
	if c.EnableDiagnosticsAfter <= 0 {
		return fmt.Errorf("ENABLE_DIAGNOSTICS_AFTER must be positive, got %d", c.EnableDiagnosticsAfter)
	}
	if c.SuccessReset <= 0 {
		return fmt.Errorf("SUCCESS_RESET must be positive, got %d", c.SuccessReset)
	}
	if c.StopGrace <= 0 {
		return fmt.Errorf("STOP_GRACE must be positive, got %d", c.StopGrace)
	}
	return nil
}

// Channels returns the configured axis→RC channel assignment.
func (c *Config) Channels() rcoverride.Channels {
	return rcoverride.Channels{
		Roll:     c.ChannelRoll,
		Pitch:    c.ChannelPitch,
		Throttle: c.ChannelThrottle,
		Yaw:      c.ChannelYaw,
	}
}

func parseBool(value string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(value))
}

func splitModes(value string) []string {
	var modes []string
	for _, m := range strings.Split(value, ",") {
		m = strings.TrimSpace(strings.ToUpper(m))
		if m != "" {
			modes = append(modes, m)
		}
	}
	return modes
}

// InitGlobal initializes the global configuration from file. Uses
// sync.Once so repeated calls are harmless.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
