package joystick

// Calibration holds the neutral reference captured at the moment the
// trigger is pressed. Deflections are measured against it for roll,
// pitch and yaw. The throttle slider is absolute and never zeroed.
type Calibration struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Capture records the neutral reference from the current axis sample.
func Capture(s Sample) Calibration {
	return Calibration{
		Roll:  s.Roll,
		Pitch: s.Pitch,
		Yaw:   s.Yaw,
	}
}
