package rcoverride

import (
	"fmt"

	"github.com/relabs-tech/wingmav_link/internal/joystick"
)

// PWM bounds for an RC override value, in microseconds.
const (
	PWMMin     = 1000
	PWMNeutral = 1500
	PWMMax     = 2000

	// Released means "no override" for a channel. Sending a full frame
	// of Released values hands all channels back to the vehicle.
	Released = 0
)

// FrameSize is the number of RC channels carried in one override frame.
const FrameSize = 8

// Override is one RC override frame. Index i holds the value for RC
// channel i+1; Released entries leave that channel untouched. The zero
// value is a full release of all channels.
type Override [FrameSize]int

// ReleaseAll returns a frame that releases every channel.
func ReleaseAll() Override {
	return Override{}
}

// Channels assigns the four joystick axes to RC channel numbers
// (1-based). The ArduPilot default is roll=1, pitch=2, throttle=3, yaw=4.
type Channels struct {
	Roll     int
	Pitch    int
	Throttle int
	Yaw      int
}

// DefaultChannels returns the ArduPilot channel assignment.
func DefaultChannels() Channels {
	return Channels{Roll: 1, Pitch: 2, Throttle: 3, Yaw: 4}
}

// Validate checks the assignment is usable: every channel in 1..FrameSize
// and no two axes sharing a channel.
func (ch Channels) Validate() error {
	seen := map[int]string{}
	for _, a := range []struct {
		name string
		ch   int
	}{
		{"roll", ch.Roll},
		{"pitch", ch.Pitch},
		{"throttle", ch.Throttle},
		{"yaw", ch.Yaw},
	} {
		if a.ch < 1 || a.ch > FrameSize {
			return fmt.Errorf("%s channel %d out of range 1..%d", a.name, a.ch, FrameSize)
		}
		if prev, ok := seen[a.ch]; ok {
			return fmt.Errorf("%s and %s mapped to the same channel %d", prev, a.name, a.ch)
		}
		seen[a.ch] = a.name
	}
	return nil
}

// Encoder converts a calibrated axis sample into an override frame.
// It is a pure function of its inputs: no state beyond the fixed
// scaling configuration, so the same sample and calibration always
// produce the same frame.
type Encoder struct {
	// Gain maps a full-scale deflection (1.0) to PWM microseconds
	// away from neutral.
	Gain float64

	// Deadband suppresses deflections smaller than this magnitude on
	// roll/pitch/yaw, so stick noise around the captured neutral does
	// not leak into the override.
	Deadband float64

	Channels Channels
}

// NewEncoder returns an encoder with the given scaling and the default
// channel assignment.
func NewEncoder(gain, deadband float64) Encoder {
	return Encoder{Gain: gain, Deadband: deadband, Channels: DefaultChannels()}
}

// Encode computes the override frame for one tick. Roll, pitch and yaw
// are measured against the calibration; the throttle slider is taken
// raw. Every value is clamped to the valid PWM range.
func (e Encoder) Encode(s joystick.Sample, c joystick.Calibration) Override {
	var o Override
	o[e.Channels.Roll-1] = e.scale(s.Roll - c.Roll)
	o[e.Channels.Pitch-1] = e.scale(s.Pitch - c.Pitch)
	o[e.Channels.Yaw-1] = e.scale(s.Yaw - c.Yaw)
	o[e.Channels.Throttle-1] = clamp(PWMNeutral + int(s.Throttle*e.Gain))
	return o
}

func (e Encoder) scale(deflect float64) int {
	if deflect > -e.Deadband && deflect < e.Deadband {
		deflect = 0
	}
	return clamp(PWMNeutral + int(deflect*e.Gain))
}

func clamp(pwm int) int {
	if pwm < PWMMin {
		return PWMMin
	}
	if pwm > PWMMax {
		return PWMMax
	}
	return pwm
}
