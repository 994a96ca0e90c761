package input

// Action is a logical driver control.
type Action string

const (
	Forward   Action = "forward"
	Backward  Action = "backward"
	TurnLeft  Action = "turnLeft"
	TurnRight Action = "turnRight"
	Brake     Action = "brake"
	Boost     Action = "boost"
	LookLeft  Action = "lookLeft"
	LookRight Action = "lookRight"
)

// Actions lists every logical control in a stable order.
var Actions = []Action{Forward, Backward, TurnLeft, TurnRight, Brake, Boost, LookLeft, LookRight}

// ControlState is the snapshot of driver controls for one frame.
type ControlState struct {
	Forward   bool `json:"forward"`
	Backward  bool `json:"backward"`
	TurnLeft  bool `json:"turnLeft"`
	TurnRight bool `json:"turnRight"`
	Brake     bool `json:"brake"`
	Boost     bool `json:"boost"`
	LookLeft  bool `json:"lookLeft"`
	LookRight bool `json:"lookRight"`
}

// Steering returns +1 for left, -1 for right and 0 when both or neither are held.
func (c ControlState) Steering() float64 {
	var s float64
	if c.TurnLeft {
		s++
	}
	if c.TurnRight {
		s--
	}
	return s
}

// LookBias returns +1 while glancing left, -1 while glancing right.
// Left wins when both are held.
func (c ControlState) LookBias() int {
	switch {
	case c.LookLeft:
		return 1
	case c.LookRight:
		return -1
	}
	return 0
}

// With returns a copy of c with action set to pressed.
func (c ControlState) With(action Action, pressed bool) ControlState {
	switch action {
	case Forward:
		c.Forward = pressed
	case Backward:
		c.Backward = pressed
	case TurnLeft:
		c.TurnLeft = pressed
	case TurnRight:
		c.TurnRight = pressed
	case Brake:
		c.Brake = pressed
	case Boost:
		c.Boost = pressed
	case LookLeft:
		c.LookLeft = pressed
	case LookRight:
		c.LookRight = pressed
	}
	return c
}

// ParseAction validates an action name coming from the wire.
func ParseAction(name string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}
