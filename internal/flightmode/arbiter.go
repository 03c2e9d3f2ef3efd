package flightmode

// ModeUnknown marks a snapshot taken while the vehicle mode could not
// be read. It never resolves to itself.
const ModeUnknown = "UNKNOWN"

// ModeAugmented is the mode commanded when joystick control engages.
const ModeAugmented = "GUIDED"

// DefaultFallback is the safe-mode ladder tried when no previous mode
// is usable: primary-safe first, ultimate-safe last.
func DefaultFallback() []string {
	return []string{"LOITER", "STABILIZE"}
}

// Arbiter remembers the flight mode active before an engagement and
// resolves the mode to command on disengage. It holds exactly one
// snapshot at a time; the engagement controller clears it, the arbiter
// never does so on its own.
type Arbiter struct {
	snapshot string
	have     bool
	fallback []string
	excluded map[string]bool
}

// NewArbiter builds an arbiter with the given fallback chain and the
// set of modes that must never be restored (the augmented mode itself,
// typically). The fallback chain must not be empty.
func NewArbiter(fallback []string, excluded []string) *Arbiter {
	ex := make(map[string]bool, len(excluded))
	for _, m := range excluded {
		ex[m] = true
	}
	return &Arbiter{fallback: fallback, excluded: ex}
}

// Snapshot stores the mode observed immediately before engagement,
// overwriting any previous slot. An empty mode is recorded as unknown.
func (a *Arbiter) Snapshot(mode string) {
	if mode == "" {
		mode = ModeUnknown
	}
	a.snapshot = mode
	a.have = true
}

// Clear discards the snapshot. Called by the controller on disengage.
func (a *Arbiter) Clear() {
	a.snapshot = ""
	a.have = false
}

// Resolve returns the mode to command on disengage: the snapshot when
// it holds a known, non-excluded mode, otherwise the first entry of
// the fallback chain. The result is advisory; the caller still issues
// the command and handles rejection.
func (a *Arbiter) Resolve() string {
	if a.have && a.snapshot != ModeUnknown && !a.excluded[a.snapshot] {
		return a.snapshot
	}
	return a.fallback[0]
}

// Fallback returns the configured fallback chain in order.
func (a *Arbiter) Fallback() []string {
	return a.fallback
}

// UltimateSafe returns the last entry of the fallback chain, commanded
// directly after an input-source disconnect.
func (a *Arbiter) UltimateSafe() string {
	return a.fallback[len(a.fallback)-1]
}
