package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/wingmav_link/internal/flightmode"
	"github.com/relabs-tech/wingmav_link/internal/joystick"
	"github.com/relabs-tech/wingmav_link/internal/rcoverride"
)

func newTestController(modeSwitching bool) *Controller {
	enc := rcoverride.NewEncoder(500, 0.01)
	arb := flightmode.NewArbiter(flightmode.DefaultFallback(), []string{flightmode.ModeAugmented})
	return NewController(modeSwitching, enc, arb)
}

func ofType(cmds []Command, ct CommandType) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

func TestEngageCapturesNeutralAndRequestsAugmentedMode(t *testing.T) {
	c := newTestController(true)

	cmds := c.Tick(Inputs{
		State:       joystick.State{Axes: joystick.Sample{Roll: 0.30}, Trigger: true},
		CurrentMode: "ALT_HOLD",
	})

	assert.Equal(t, Engaged, c.State())

	modes := ofType(cmds, CommandSetMode)
	require.Len(t, modes, 1)
	assert.Equal(t, flightmode.ModeAugmented, modes[0].Mode)

	overrides := ofType(cmds, CommandOverride)
	require.Len(t, overrides, 1)
	assert.True(t, overrides[0].Forced, "first frame after engage must not be deduplicated")
	assert.Equal(t, rcoverride.PWMNeutral, overrides[0].Override[0],
		"stick position at the press is the neutral reference")

	// Deflect 0.02 from the captured neutral on the next tick.
	cmds = c.Tick(Inputs{
		State: joystick.State{Axes: joystick.Sample{Roll: 0.32}, Trigger: true},
	})
	overrides = ofType(cmds, CommandOverride)
	require.Len(t, overrides, 1)
	assert.Equal(t, 1510, overrides[0].Override[0])
}

func TestHoldingTriggerDoesNotRecalibrate(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Axes: joystick.Sample{Roll: 0.30}, Trigger: true}})
	cal, ok := c.Calibration()
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		cmds := c.Tick(Inputs{State: joystick.State{Axes: joystick.Sample{Roll: 0.50}, Trigger: true}})
		assert.Empty(t, ofType(cmds, CommandSetMode), "held trigger must not re-engage")
	}

	got, ok := c.Calibration()
	require.True(t, ok)
	assert.Equal(t, cal, got)
}

func TestReleaseClearsOverridesAndRestoresMode(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: "ALT_HOLD"})
	cmds := c.Tick(Inputs{State: joystick.State{Trigger: false}})

	assert.Equal(t, Disengaged, c.State())

	releases := ofType(cmds, CommandReleaseOverride)
	require.Len(t, releases, 1)
	assert.Equal(t, rcoverride.ReleaseAll(), releases[0].Override)

	modes := ofType(cmds, CommandSetMode)
	require.Len(t, modes, 1)
	assert.Equal(t, "ALT_HOLD", modes[0].Mode)
	assert.Equal(t, flightmode.DefaultFallback(), modes[0].Fallback)

	assert.Empty(t, ofType(cmds, CommandOverride), "no override frame after disengage")
}

func TestReleaseFallsBackWhenPriorModeUnknown(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: ""})
	cmds := c.Tick(Inputs{State: joystick.State{Trigger: false}})

	modes := ofType(cmds, CommandSetMode)
	require.Len(t, modes, 1)
	assert.Equal(t, "LOITER", modes[0].Mode)
}

func TestReleaseFallsBackWhenPriorModeWasAugmented(t *testing.T) {
	c := newTestController(true)

	// Vehicle was already in GUIDED when the trigger was pressed;
	// restoring it on release would leave the vehicle unmanned.
	c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: flightmode.ModeAugmented})
	cmds := c.Tick(Inputs{State: joystick.State{Trigger: false}})

	modes := ofType(cmds, CommandSetMode)
	require.Len(t, modes, 1)
	assert.Equal(t, "LOITER", modes[0].Mode)
}

func TestManualOnlyNeverTouchesFlightMode(t *testing.T) {
	c := newTestController(false)

	cmds := c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: "ALT_HOLD"})
	assert.Empty(t, ofType(cmds, CommandSetMode))
	assert.Len(t, ofType(cmds, CommandOverride), 1)

	cmds = c.Tick(Inputs{State: joystick.State{Trigger: false}})
	assert.Empty(t, ofType(cmds, CommandSetMode))
	assert.Len(t, ofType(cmds, CommandReleaseOverride), 1)

	c.Tick(Inputs{State: joystick.State{Trigger: true}})
	cmds = c.Tick(Inputs{Disconnected: true})
	assert.Empty(t, ofType(cmds, CommandSetMode), "manual-only holds even on disconnect")
	assert.Len(t, ofType(cmds, CommandReleaseOverride), 1)
}

func TestDisconnectWhileEngaged(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: "ALT_HOLD"})
	cmds := c.Tick(Inputs{Disconnected: true})

	assert.Equal(t, Disengaged, c.State())
	require.Len(t, ofType(cmds, CommandReleaseOverride), 1)

	modes := ofType(cmds, CommandSetMode)
	require.Len(t, modes, 1)
	assert.Equal(t, "STABILIZE", modes[0].Mode,
		"disconnect commands the ultimate-safe mode, not the snapshot")
}

func TestDisconnectWhileDisengagedIsNoop(t *testing.T) {
	c := newTestController(true)
	assert.Empty(t, c.Tick(Inputs{Disconnected: true}))
	assert.Equal(t, Disengaged, c.State())
}

func TestReconnectAfterDisconnectStartsClean(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Trigger: true}})
	c.Tick(Inputs{Disconnected: true})

	// The trigger is still physically held at reconnect: that counts as
	// a fresh press and engages again.
	cmds := c.Tick(Inputs{State: joystick.State{Trigger: true}, CurrentMode: "ALT_HOLD"})
	assert.Equal(t, Engaged, c.State())
	require.Len(t, ofType(cmds, CommandSetMode), 1)
}

func TestAuxButtonsAreEdgeTriggered(t *testing.T) {
	c := newTestController(true)

	var rtls, disarms int
	for i := 0; i < 4; i++ {
		cmds := c.Tick(Inputs{State: joystick.State{RTL: true, Disarm: true}})
		rtls += len(ofType(cmds, CommandRTL))
		disarms += len(ofType(cmds, CommandDisarm))
	}

	assert.Equal(t, 1, rtls, "held RTL button fires once")
	assert.Equal(t, 1, disarms, "held disarm button fires once")
	assert.Equal(t, Disengaged, c.State(), "aux buttons do not change engagement")

	// Release and press again: a second edge, a second command.
	c.Tick(Inputs{})
	cmds := c.Tick(Inputs{State: joystick.State{RTL: true}})
	assert.Len(t, ofType(cmds, CommandRTL), 1)
}

func TestOverrideEmittedEveryTickWhileEngaged(t *testing.T) {
	c := newTestController(true)

	c.Tick(Inputs{State: joystick.State{Axes: joystick.Sample{Roll: 0.1}, Trigger: true}})
	for i := 0; i < 3; i++ {
		cmds := c.Tick(Inputs{State: joystick.State{Axes: joystick.Sample{Roll: 0.1}, Trigger: true}})
		overrides := ofType(cmds, CommandOverride)
		require.Len(t, overrides, 1, "the vehicle times out stale overrides")
		assert.False(t, overrides[0].Forced, "unchanged frame may be deduplicated downstream")
	}

	cmds := c.Tick(Inputs{State: joystick.State{Axes: joystick.Sample{Roll: 0.3}, Trigger: true}})
	overrides := ofType(cmds, CommandOverride)
	require.Len(t, overrides, 1)
	assert.True(t, overrides[0].Forced, "changed frame must go out")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISENGAGED", Disengaged.String())
	assert.Equal(t, "ENGAGED", Engaged.String())
}
