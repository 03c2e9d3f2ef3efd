package app

import (
	"log"
	"time"

	"github.com/relabs-tech/wingmav_link/internal/config"
	"github.com/relabs-tech/wingmav_link/internal/engagement"
	"github.com/relabs-tech/wingmav_link/internal/events"
	"github.com/relabs-tech/wingmav_link/internal/flightmode"
	"github.com/relabs-tech/wingmav_link/internal/joystick"
	"github.com/relabs-tech/wingmav_link/internal/rcoverride"
	"github.com/relabs-tech/wingmav_link/internal/relay"
)

// RunControl drives the engagement state machine on the host polling
// cadence: read joystick state from the relay, advance the controller
// one tick, dispatch the resulting commands. Overrides are refreshed
// every tick while engaged; a stalled loop here means the vehicle
// times out the override, so the tick body never blocks on anything
// but the MQTT publish itself.
//
// With mockInput set the joystick state comes from the built-in mock
// source instead of the relay, for bench runs without a stick attached.
func RunControl(mockInput bool) error {
	cfg := config.Get()

	rc, err := relay.Dial(cfg.MQTTBroker, cfg.MQTTClientIDControl, relay.Topics{
		CmdOverride: cfg.TopicCmdOverride,
		CmdMode:     cfg.TopicCmdMode,
		CmdAction:   cfg.TopicCmdAction,
		VehicleMode: cfg.TopicVehicleMode,
		Joystick:    cfg.TopicJoystick,
	})
	if err != nil {
		return err
	}
	defer rc.Close()

	ev := events.NewPublisher(rc.MQTT(), cfg.TopicEvents)

	enc := rcoverride.Encoder{
		Gain:     cfg.OverrideGain,
		Deadband: cfg.OverrideDeadband,
		Channels: cfg.Channels(),
	}
	arb := flightmode.NewArbiter(cfg.FallbackModes, cfg.ExcludedModes)
	ctrl := engagement.NewController(cfg.ModeSwitchingEnabled, enc, arb)

	if !cfg.ModeSwitchingEnabled {
		log.Println("control: manual-only mode, flight mode will never be touched")
	}

	var src joystick.Source
	if mockInput {
		src = joystick.NewMockSource()
		log.Println("control: using mock joystick source")
	}

	maxAge := time.Duration(cfg.JoystickTimeout) * time.Millisecond
	ticker := time.NewTicker(time.Duration(cfg.TickInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("control: starting tick loop every %dms", cfg.TickInterval)

	for range ticker.C {
		st, connected := readInput(src, rc, maxAge)
		in := engagement.Inputs{
			State:        st,
			Disconnected: !connected,
			CurrentMode:  rc.CurrentMode(),
		}

		before := ctrl.State()
		cmds := ctrl.Tick(in)
		dispatch(rc, cmds)

		if after := ctrl.State(); after != before {
			typ := "engaged"
			if after == engagement.Disengaged {
				typ = "disengaged"
				if !connected {
					typ = "input_disconnected"
				}
			}
			ev.Publish(events.Event{Source: "engagement", Type: typ, Mode: rc.CurrentMode()})
		}
	}
	return nil
}

// readInput polls either the mock source or the relay.
func readInput(src joystick.Source, rc *relay.Client, maxAge time.Duration) (joystick.State, bool) {
	if src == nil {
		return rc.Joystick(maxAge)
	}
	st, err := src.Next()
	if err != nil {
		log.Printf("control: mock source error: %v", err)
		return joystick.State{}, false
	}
	return st, true
}

// dispatch sends each command to the relay. Rejections are logged and
// never roll the state machine back: local state follows operator
// intent, not vehicle acknowledgement.
func dispatch(rc *relay.Client, cmds []engagement.Command) {
	for _, cmd := range cmds {
		switch cmd.Type {
		case engagement.CommandOverride:
			if err := rc.SetOverride(cmd.Override, cmd.Forced); err != nil {
				log.Printf("control: override refresh failed: %v", err)
			}
		case engagement.CommandReleaseOverride:
			if err := rc.ReleaseOverride(); err != nil {
				log.Printf("control: override release failed: %v", err)
			}
		case engagement.CommandSetMode:
			requestMode(rc, cmd.Mode, cmd.Fallback)
		case engagement.CommandRTL:
			if err := rc.SendRTL(); err != nil {
				log.Printf("control: RTL command failed: %v", err)
			}
		case engagement.CommandDisarm:
			if err := rc.SendDisarm(); err != nil {
				log.Printf("control: disarm command failed: %v", err)
			}
		}
	}
}

// requestMode issues a mode change and, if it is refused, walks the
// fallback chain. One attempt per mode, no retry loops.
func requestMode(rc *relay.Client, mode string, fallback []string) {
	err := rc.RequestMode(mode)
	if err == nil {
		return
	}
	log.Printf("control: mode change to %s failed: %v", mode, err)

	for _, fb := range fallback {
		if fb == mode {
			continue
		}
		if err := rc.RequestMode(fb); err != nil {
			log.Printf("control: fallback to %s failed: %v", fb, err)
			continue
		}
		log.Printf("control: fell back to %s", fb)
		return
	}
	log.Printf("control: WARNING: no mode change could be issued")
}
