// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package supervisor

import (
	"context"
	"log"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/wingmav_link/internal/events"
)

// State of the supervisor. Degraded overlays the restart cycle: while
// degraded, joystick integration stays out of every command line the
// supervisor constructs.
type State int

const (
	Starting State = iota
	Running
	Backoff
	Degraded
)

func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Backoff:
		return "BACKOFF"
	case Degraded:
		return "DEGRADED"
	}
	return "UNKNOWN"
}

// Config tunes the supervisor. Every threshold is a parameter rather
// than a hardcoded curve.
type Config struct {
	Spawner Spawner
	Backoff BackoffPolicy

	// DisableJoystickAfter is the consecutive-failure count at which
	// joystick integration is dropped from the next restart.
	DisableJoystickAfter int

	// EnableDiagnosticsAfter is the consecutive-failure count at
	// which diagnostic arguments are added to subsequent restarts.
	EnableDiagnosticsAfter int

	// SuccessReset is the sustained uptime after which the failure
	// count resets and a degraded supervisor re-enables joystick
	// integration on the following restart cycle.
	SuccessReset time.Duration

	// Grace bounds the wait between SIGTERM and SIGKILL on shutdown.
	Grace time.Duration

	// ModuleFailureExit is the child exit code that implicates the
	// joystick module directly (the runner's failure marker).
	ModuleFailureExit int

	// BuildArgs constructs the link command line for the current
	// joystick/diagnostic decision. Called once per restart.
	BuildArgs func(joystickEnabled, diagnostics bool) []string

	// Preflight, when set, runs before every spawn. A failure counts
	// against the failure budget without starting the child; used to
	// probe the serial master device.
	Preflight func() error

	Events events.Sink
}

// Status is a point-in-time snapshot, safe to serialize.
type Status struct {
	State           string `json:"state"`
	Failures        int    `json:"failures"`
	Degraded        bool   `json:"degraded"`
	Diagnostics     bool   `json:"diagnostics"`
	JoystickEnabled bool   `json:"joystick_enabled"`
	LastInterval    string `json:"last_interval,omitempty"`
}

// Supervisor keeps the link process alive and progressively constrains
// functionality under repeated failure. It owns the child handle
// exclusively; all state is mutated only by its own Run loop.
type Supervisor struct {
	cfg Config

	mu           sync.Mutex
	phase        State
	failures     int
	degraded     bool
	diagnostics  bool
	lastInterval time.Duration
	lastStart    time.Time
}

// New builds a supervisor in the Starting phase.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// State returns Degraded whenever the degraded flag is set, otherwise
// the current phase of the restart cycle.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return Degraded
	}
	return s.phase
}

// JoystickEnabled reports whether the next restart will include the
// joystick module. The engagement side reads this only when a module
// instance starts, never mid-session.
func (s *Supervisor) JoystickEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.degraded
}

// Status returns a snapshot for the web/display consumers.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:           s.phase.String(),
		Failures:        s.failures,
		Degraded:        s.degraded,
		Diagnostics:     s.diagnostics,
		JoystickEnabled: !s.degraded,
	}
	if s.degraded {
		st.State = Degraded.String()
	}
	if s.lastInterval > 0 {
		st.LastInterval = s.lastInterval.String()
	}
	return st
}

// Run drives the restart cycle until the context is cancelled. On
// cancellation the current child is terminated and waited for, bounded
// by the grace period, then force-killed.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.setPhase(Starting)

		if s.cfg.Preflight != nil {
			if err := s.cfg.Preflight(); err != nil {
				log.Printf("supervisor: link preflight failed: %v", err)
				s.recordFailure()
				s.emit(events.Event{Type: "preflight_failed", Message: err.Error()})
				if !s.waitBackoff(ctx) {
					return nil
				}
				continue
			}
		}

		args := s.cfg.BuildArgs(s.JoystickEnabled(), s.diagnosticsEnabled())
		proc, err := s.cfg.Spawner.Spawn(args)
		if err != nil {
			log.Printf("supervisor: failed to spawn link process: %v", err)
			s.recordFailure()
			s.emit(events.Event{Type: "spawn_failed", Message: err.Error()})
			if !s.waitBackoff(ctx) {
				return nil
			}
			continue
		}

		s.markRunning()
		log.Printf("supervisor: link process started (pid %d)", proc.Pid())
		s.emit(events.Event{Type: "link_started"})

		select {
		case <-ctx.Done():
			s.shutdown(proc)
			s.emit(events.Event{Type: "supervisor_stopped"})
			return nil
		case st := <-proc.Done():
			uptime := s.uptime()
			log.Printf("supervisor: link process exited with code %d after %s", st.Code, uptime.Round(time.Second))
			s.emit(events.Event{Type: "link_exited", ExitCode: st.Code})
			s.evaluateExit(st, uptime)
		}

		if !s.waitBackoff(ctx) {
			return nil
		}
	}
}

// evaluateExit applies the failure/reset policy after a child exit.
func (s *Supervisor) evaluateExit(st ExitStatus, uptime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cfg.ModuleFailureExit != 0 && st.Code == s.cfg.ModuleFailureExit:
		// The runner implicated the joystick module directly: skip
		// the budget and degrade immediately.
		if s.failures < s.cfg.DisableJoystickAfter {
			s.failures = s.cfg.DisableJoystickAfter
		}
		s.diagnostics = true
		if !s.degraded {
			s.degraded = true
			log.Printf("supervisor: joystick module failure reported; disabling joystick integration on next restart")
			s.emitLocked(events.Event{Type: "degraded_entered", Failures: s.failures})
		}

	case st.Code == 0 && uptime >= s.cfg.SuccessReset:
		s.failures = 0
		s.diagnostics = false
		if s.degraded {
			s.degraded = false
			// The re-enable takes effect on the next constructed
			// command line, never on a process already running.
			log.Printf("supervisor: stable run detected; re-enabling joystick integration on next restart")
			s.emitLocked(events.Event{Type: "degraded_cleared"})
		}

	default:
		s.failures++
		log.Printf("supervisor: consecutive failure count now %d", s.failures)
		if s.failures >= s.cfg.DisableJoystickAfter && !s.degraded {
			s.degraded = true
			log.Printf("supervisor: repeated failures; disabling joystick integration so telemetry keeps flowing")
			s.emitLocked(events.Event{Type: "degraded_entered", Failures: s.failures})
		}
		if s.failures >= s.cfg.EnableDiagnosticsAfter && !s.diagnostics {
			s.diagnostics = true
			log.Printf("supervisor: enabling diagnostic link options for additional insight")
		}
	}
}

// waitBackoff sleeps out the backoff interval for the current failure
// count. Returns false when the context was cancelled.
func (s *Supervisor) waitBackoff(ctx context.Context) bool {
	s.mu.Lock()
	s.phase = Backoff
	failures := s.failures
	interval := s.cfg.Backoff.Interval(failures)
	s.lastInterval = interval
	s.mu.Unlock()

	log.Printf("supervisor: restarting in %s (failures=%d)", interval, failures)
	s.emit(events.Event{Type: "restart_scheduled", Interval: interval.String(), Failures: failures})

	t := time.NewTimer(interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// shutdown terminates the child cooperatively, escalating to SIGKILL
// after the grace period.
func (s *Supervisor) shutdown(proc Process) {
	log.Printf("supervisor: stop requested, terminating link process (pid %d)", proc.Pid())
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		log.Printf("supervisor: SIGTERM failed: %v", err)
	}

	t := time.NewTimer(s.cfg.Grace)
	defer t.Stop()
	select {
	case <-proc.Done():
		return
	case <-t.C:
		log.Printf("supervisor: link process did not exit within %s, killing", s.cfg.Grace)
		if err := proc.Kill(); err != nil {
			log.Printf("supervisor: kill failed: %v", err)
		}
		<-proc.Done()
	}
}

func (s *Supervisor) setPhase(p State) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Supervisor) markRunning() {
	s.mu.Lock()
	s.phase = Running
	s.lastStart = time.Now()
	s.mu.Unlock()
}

func (s *Supervisor) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastStart)
}

// recordFailure counts a failure that happened before the child ever
// ran (preflight or spawn). The same thresholds apply as for exits.
func (s *Supervisor) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures >= s.cfg.DisableJoystickAfter && !s.degraded {
		s.degraded = true
		s.emitLocked(events.Event{Type: "degraded_entered", Failures: s.failures})
	}
	if s.failures >= s.cfg.EnableDiagnosticsAfter {
		s.diagnostics = true
	}
}

func (s *Supervisor) diagnosticsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagnostics
}

func (s *Supervisor) emit(ev events.Event) {
	if s.cfg.Events == nil {
		return
	}
	ev.Source = "supervisor"
	s.cfg.Events.Publish(ev)
}

// emitLocked is emit for callers already holding s.mu. The sink must
// not call back into the supervisor.
func (s *Supervisor) emitLocked(ev events.Event) {
	if s.cfg.Events == nil {
		return
	}
	ev.Source = "supervisor"
	s.cfg.Events.Publish(ev)
}
