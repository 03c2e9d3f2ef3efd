// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package rcoverride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/wingmav_link/internal/joystick"
)

func TestEncodeNeutralSample(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	s := joystick.Sample{Roll: 0.30, Pitch: -0.12, Yaw: 0.05, Throttle: 0}
	cal := joystick.Capture(s)

	o := enc.Encode(s, cal)

	assert.Equal(t, PWMNeutral, o[0], "roll at captured neutral")
	assert.Equal(t, PWMNeutral, o[1], "pitch at captured neutral")
	assert.Equal(t, PWMNeutral, o[3], "yaw at captured neutral")
	assert.Equal(t, PWMNeutral, o[2], "throttle at slider zero")
}

func TestEncodeMeasuresAgainstCalibration(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	cal := joystick.Capture(joystick.Sample{Roll: 0.30})

	o := enc.Encode(joystick.Sample{Roll: 0.32}, cal)

	// 0.02 of deflection at gain 500 is 10us away from neutral.
	assert.Equal(t, 1510, o[0])
}

func TestEncodeThrottleIsAbsolute(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	cal := joystick.Capture(joystick.Sample{Roll: 0.5, Pitch: 0.5, Yaw: 0.5, Throttle: 0.5})

	assert.Equal(t, PWMMax, enc.Encode(joystick.Sample{Throttle: 1}, cal)[2])
	assert.Equal(t, PWMMin, enc.Encode(joystick.Sample{Throttle: -1}, cal)[2])
	assert.Equal(t, 1750, enc.Encode(joystick.Sample{Throttle: 0.5}, cal)[2])
}

func TestEncodeClampsToPWMRange(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	var cal joystick.Calibration

	o := enc.Encode(joystick.Sample{Roll: 2, Pitch: -2, Throttle: 5}, cal)

	assert.Equal(t, PWMMax, o[0])
	assert.Equal(t, PWMMin, o[1])
	assert.Equal(t, PWMMax, o[2])
}

func TestEncodeDeadband(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	var cal joystick.Calibration

	assert.Equal(t, PWMNeutral, enc.Encode(joystick.Sample{Roll: 0.005}, cal)[0])
	assert.Equal(t, PWMNeutral, enc.Encode(joystick.Sample{Roll: -0.009}, cal)[0])
	assert.Equal(t, 1510, enc.Encode(joystick.Sample{Roll: 0.02}, cal)[0])
}

func TestEncodeIsDeterministic(t *testing.T) {
	enc := NewEncoder(500, 0.01)
	s := joystick.Sample{Roll: 0.4, Pitch: -0.3, Yaw: 0.1, Throttle: 0.7}
	cal := joystick.Capture(joystick.Sample{Roll: 0.1, Pitch: 0.1, Yaw: 0.1})

	first := enc.Encode(s, cal)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, enc.Encode(s, cal))
	}
}

func TestEncodeCustomChannelMapping(t *testing.T) {
	enc := NewEncoder(500, 0)
	enc.Channels = Channels{Roll: 4, Pitch: 3, Throttle: 2, Yaw: 1}
	var cal joystick.Calibration

	o := enc.Encode(joystick.Sample{Roll: 0.2, Pitch: -0.2, Yaw: 0.1, Throttle: 1}, cal)

	assert.Equal(t, 1600, o[3], "roll on channel 4")
	assert.Equal(t, 1400, o[2], "pitch on channel 3")
	assert.Equal(t, PWMMax, o[1], "throttle on channel 2")
	assert.Equal(t, 1550, o[0], "yaw on channel 1")
}

func TestReleaseAllIsZeroFrame(t *testing.T) {
	o := ReleaseAll()
	for i, v := range o {
		assert.Equal(t, Released, v, "channel %d", i+1)
	}
}

func TestChannelsValidate(t *testing.T) {
	require.NoError(t, DefaultChannels().Validate())

	err := Channels{Roll: 0, Pitch: 2, Throttle: 3, Yaw: 4}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	err = Channels{Roll: 1, Pitch: 2, Throttle: 9, Yaw: 4}.Validate()
	require.Error(t, err)

	err = Channels{Roll: 1, Pitch: 1, Throttle: 3, Yaw: 4}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same channel")
}
