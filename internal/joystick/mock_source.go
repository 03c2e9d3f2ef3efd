// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package joystick

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock joystick source that generates smooth
// changing axis values with the trigger held. Useful for bench runs
// without a physical stick attached.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (State, error) {
	elapsed := time.Since(m.start).Seconds()

	return State{
		Axes: Sample{
			Roll:     0.4 * math.Sin(elapsed),
			Pitch:    0.3 * math.Cos(elapsed*0.7),
			Yaw:      0.2 * math.Sin(elapsed*0.3),
			Throttle: 0.5 * math.Sin(elapsed*0.1),
		},
		Trigger: true,
	}, nil
}
