package flightmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveReturnsSnapshot(t *testing.T) {
	a := NewArbiter(DefaultFallback(), []string{ModeAugmented})
	a.Snapshot("ALT_HOLD")
	assert.Equal(t, "ALT_HOLD", a.Resolve())
}

func TestResolveFallsBackWithoutSnapshot(t *testing.T) {
	a := NewArbiter(DefaultFallback(), []string{ModeAugmented})
	assert.Equal(t, "LOITER", a.Resolve())
}

func TestResolveFallsBackOnUnknown(t *testing.T) {
	a := NewArbiter(DefaultFallback(), []string{ModeAugmented})
	a.Snapshot("")
	assert.Equal(t, "LOITER", a.Resolve())

	a.Snapshot(ModeUnknown)
	assert.Equal(t, "LOITER", a.Resolve())
}

func TestResolveFallsBackOnExcludedMode(t *testing.T) {
	a := NewArbiter(DefaultFallback(), []string{ModeAugmented})
	a.Snapshot(ModeAugmented)
	assert.Equal(t, "LOITER", a.Resolve(),
		"restoring the augmented mode would re-enter joystick control")
}

func TestClearDiscardsSnapshot(t *testing.T) {
	a := NewArbiter(DefaultFallback(), nil)
	a.Snapshot("ALT_HOLD")
	a.Clear()
	assert.Equal(t, "LOITER", a.Resolve())
}

func TestSnapshotOverwrites(t *testing.T) {
	a := NewArbiter(DefaultFallback(), nil)
	a.Snapshot("ALT_HOLD")
	a.Snapshot("AUTO")
	assert.Equal(t, "AUTO", a.Resolve())
}

func TestUltimateSafeIsLastFallbackEntry(t *testing.T) {
	a := NewArbiter([]string{"LOITER", "STABILIZE"}, nil)
	assert.Equal(t, "STABILIZE", a.UltimateSafe())

	a = NewArbiter([]string{"RTL"}, nil)
	assert.Equal(t, "RTL", a.UltimateSafe())
}
