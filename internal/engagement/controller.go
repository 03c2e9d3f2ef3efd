// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package engagement

import (
	"log"

	"github.com/relabs-tech/wingmav_link/internal/flightmode"
	"github.com/relabs-tech/wingmav_link/internal/joystick"
	"github.com/relabs-tech/wingmav_link/internal/rcoverride"
)

// State of the engagement machine. Exactly one is active at a time.
type State int

const (
	Disengaged State = iota
	Engaged
)

func (s State) String() string {
	if s == Engaged {
		return "ENGAGED"
	}
	return "DISENGAGED"
}

// CommandType classifies an outbound command intent.
type CommandType int

const (
	// CommandOverride refreshes the RC override frame. Emitted every
	// tick while engaged; the vehicle times out overrides that stop
	// arriving, so a single emission is never sufficient.
	CommandOverride CommandType = iota

	// CommandReleaseOverride explicitly hands all channels back.
	CommandReleaseOverride

	// CommandSetMode requests a flight-mode change.
	CommandSetMode

	// CommandRTL and CommandDisarm are the fire-and-forget emergency
	// buttons.
	CommandRTL
	CommandDisarm
)

// Command is one outbound intent produced by a tick. Delivery is
// best-effort: the controller's state transition has already completed
// by the time the command is dispatched.
type Command struct {
	Type     CommandType
	Override rcoverride.Override

	// Forced marks an override frame that must not be deduplicated:
	// the first frame after engaging, or one whose values changed
	// since the previous tick.
	Forced bool

	Mode string

	// Fallback lists modes to try in order if Mode is rejected. Only
	// set on the restore command issued at trigger release. One
	// attempt each, no retries.
	Fallback []string
}

// Inputs is everything the controller reads on one tick.
type Inputs struct {
	State joystick.State

	// Disconnected signals loss of the input source this tick. The
	// joystick state is not trustworthy when set.
	Disconnected bool

	// CurrentMode is the vehicle mode as last reported by the relay,
	// empty when unknown.
	CurrentMode string
}

// Controller is the trigger/button state machine. It owns the neutral
// calibration, drives the encoder and the mode arbiter, and emits
// command intents. It runs on a single cooperative tick and keeps no
// goroutines of its own.
type Controller struct {
	modeSwitching bool
	encoder       rcoverride.Encoder
	arbiter       *flightmode.Arbiter

	state State
	cal   joystick.Calibration

	// Edge detection for the momentary buttons. Press handling is
	// edge-triggered: holding a button produces exactly one command.
	prevTrigger bool
	prevRTL     bool
	prevDisarm  bool

	lastFrame rcoverride.Override
	haveFrame bool
}

// NewController builds a disengaged controller. With modeSwitching
// false (manual-only) the controller never issues a mode command on
// any transition.
func NewController(modeSwitching bool, enc rcoverride.Encoder, arb *flightmode.Arbiter) *Controller {
	return &Controller{
		modeSwitching: modeSwitching,
		encoder:       enc,
		arbiter:       arb,
	}
}

// State returns the current engagement state.
func (c *Controller) State() State {
	return c.state
}

// Calibration returns the neutral reference while engaged. The second
// result is false when disengaged.
func (c *Controller) Calibration() (joystick.Calibration, bool) {
	return c.cal, c.state == Engaged
}

// Tick advances the state machine by one input poll and returns the
// commands to dispatch, in order. It never blocks.
func (c *Controller) Tick(in Inputs) []Command {
	if in.Disconnected {
		return c.handleDisconnect()
	}

	var cmds []Command

	trigger := in.State.Trigger
	pressed := trigger && !c.prevTrigger
	released := !trigger && c.prevTrigger
	c.prevTrigger = trigger

	switch {
	case pressed && c.state == Disengaged:
		cmds = append(cmds, c.engage(in)...)
	case released && c.state == Engaged:
		cmds = append(cmds, c.disengage()...)
	}
	// A press while already engaged is a no-op: the calibration
	// captured at the original press stays authoritative.

	cmds = append(cmds, c.auxButtons(in.State)...)

	if c.state == Engaged {
		cmds = append(cmds, c.refreshOverride(in.State.Axes))
	}

	return cmds
}

func (c *Controller) engage(in Inputs) []Command {
	c.cal = joystick.Capture(in.State.Axes)
	c.state = Engaged
	c.haveFrame = false

	if !c.modeSwitching {
		log.Printf("engagement: trigger pressed, manual override only (mode untouched)")
		return nil
	}

	mode := in.CurrentMode
	if mode == "" {
		mode = flightmode.ModeUnknown
	}
	c.arbiter.Snapshot(mode)
	log.Printf("engagement: trigger pressed, entering %s (previous mode %s)",
		flightmode.ModeAugmented, mode)
	return []Command{{Type: CommandSetMode, Mode: flightmode.ModeAugmented}}
}

func (c *Controller) disengage() []Command {
	c.state = Disengaged
	c.cal = joystick.Calibration{}
	c.haveFrame = false

	cmds := []Command{{Type: CommandReleaseOverride, Override: rcoverride.ReleaseAll()}}
	if c.modeSwitching {
		restore := c.arbiter.Resolve()
		log.Printf("engagement: trigger released, restoring mode %s", restore)
		cmds = append(cmds, Command{
			Type:     CommandSetMode,
			Mode:     restore,
			Fallback: c.arbiter.Fallback(),
		})
	} else {
		log.Printf("engagement: trigger released, overrides cleared")
	}
	c.arbiter.Clear()
	return cmds
}

func (c *Controller) handleDisconnect() []Command {
	// Treat all buttons as released so a reconnect starts clean.
	c.prevTrigger = false
	c.prevRTL = false
	c.prevDisarm = false

	if c.state != Engaged {
		return nil
	}

	c.state = Disengaged
	c.cal = joystick.Calibration{}
	c.haveFrame = false
	c.arbiter.Clear()

	cmds := []Command{{Type: CommandReleaseOverride, Override: rcoverride.ReleaseAll()}}
	if c.modeSwitching {
		// Operator intent cannot be trusted after an unexpected
		// disconnect: skip restore-previous and go straight to the
		// ultimate-safe mode.
		safe := c.arbiter.UltimateSafe()
		log.Printf("engagement: input source lost while engaged, commanding %s", safe)
		cmds = append(cmds, Command{Type: CommandSetMode, Mode: safe})
	} else {
		log.Printf("engagement: input source lost while engaged, overrides cleared")
	}
	return cmds
}

func (c *Controller) auxButtons(st joystick.State) []Command {
	var cmds []Command
	if st.RTL && !c.prevRTL {
		log.Printf("engagement: RTL button pressed")
		cmds = append(cmds, Command{Type: CommandRTL})
	}
	c.prevRTL = st.RTL

	if st.Disarm && !c.prevDisarm {
		log.Printf("engagement: disarm button pressed")
		cmds = append(cmds, Command{Type: CommandDisarm})
	}
	c.prevDisarm = st.Disarm
	return cmds
}

func (c *Controller) refreshOverride(axes joystick.Sample) Command {
	frame := c.encoder.Encode(axes, c.cal)
	forced := !c.haveFrame || frame != c.lastFrame
	c.lastFrame = frame
	c.haveFrame = true
	return Command{Type: CommandOverride, Override: frame, Forced: forced}
}
