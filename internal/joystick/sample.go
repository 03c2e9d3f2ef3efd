package joystick

// Axis indices as reported by the input driver, matching the Logitech
// Wingman Extreme Digital 3D layout.
const (
	AxisRoll     = 0 // stick left/right
	AxisPitch    = 1 // stick forward/back
	AxisYaw      = 2 // twist
	AxisThrottle = 3 // throttle slider (absolute, never zeroed)

	NumAxes = 4
)

// Button indices on the same stick.
const (
	ButtonTrigger = 0 // engage while held
	ButtonRTL     = 5 // Return-to-Launch
	ButtonDisarm  = 6 // disarm the vehicle
)

// Sample is one normalized axis poll. Each axis is in [-1, 1].
type Sample struct {
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Throttle float64 `json:"throttle"`
}

// State is a full input poll: axes plus the momentary buttons.
type State struct {
	Axes    Sample `json:"axes"`
	Trigger bool   `json:"trigger"`
	RTL     bool   `json:"rtl"`
	Disarm  bool   `json:"disarm"`
}

// Source is anything that can provide joystick state over time.
// The real one sits behind the relay; the mock generates smooth motion.
type Source interface {
	Next() (State, error)
}
