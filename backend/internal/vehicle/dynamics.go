// Package vehicle integrates driver controls into the motion of the car.
package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-drive/backend/internal/input"
	"x-drive/backend/internal/world"
)

// State is the kinematic state of the car. It is owned by the simulation
// session and only ever replaced by Model.Step.
type State struct {
	Position    world.Vector3 `json:"position"`
	Heading     float64       `json:"heading"`  // radians, 0 faces -Z
	Speed       float64       `json:"speed"`    // signed, units/s
	Drift       float64       `json:"drift"`    // >= 0
	BoostEnergy float64       `json:"boost"`    // [0, MaxBoostEnergy]
	Distance    float64       `json:"distance"` // total units travelled
}

// NewState returns a car parked at the origin with a full boost tank.
func NewState(tuning world.Tuning) State {
	return State{BoostEnergy: tuning.MaxBoostEnergy}
}

// SpeedKmh returns the forward speed in km/h. Reversing reads as 0.
func (s State) SpeedKmh(tuning world.Tuning) float64 {
	return math.Max(0, s.Speed*tuning.KmhPerUnitSpeed)
}

// DistanceKm returns the odometer in kilometres.
func (s State) DistanceKm() float64 {
	return s.Distance / 1000
}

// Model is the arcade dynamics of the car.
type Model struct {
	tuning world.Tuning
}

func NewModel(tuning world.Tuning) *Model {
	return &Model{tuning: tuning}
}

// Tuning returns the constants the model integrates with.
func (m *Model) Tuning() world.Tuning {
	return m.tuning
}

// Step advances prev by dt seconds under controls. A non-positive or
// non-finite dt returns prev unchanged.
func (m *Model) Step(controls input.ControlState, dt float64, prev State) State {
	if !world.ValidDelta(dt) {
		return prev
	}

	v := m.tuning.Vehicle
	next := prev

	boostActive := controls.Boost && prev.BoostEnergy > 0
	maxSpeed := v.MaxSpeed
	if boostActive {
		maxSpeed = v.BoostSpeed
	}

	speed := prev.Speed
	if controls.Forward {
		speed += v.Acceleration * dt
	}
	if controls.Backward {
		speed -= v.Acceleration * v.ReverseFactor * dt
	}
	if !controls.Forward && !controls.Backward {
		speed *= math.Pow(v.Drag, dt*60)
	}
	if controls.Brake {
		// brakes stop the car, they never reverse it
		speed = math.Max(speed-v.BrakeForce*dt, 0)
	}
	speed = mgl64.Clamp(speed, -v.MaxSpeed*v.ReverseCap, maxSpeed)

	turnIntensity := mgl64.Clamp(speed/maxSpeed, 0, 1)
	steering := controls.Steering()
	next.Heading = prev.Heading + steering*v.TurnRate*turnIntensity*dt

	lateral := steering * speed * v.DriftLateral
	smoothing := 1 - math.Pow(1-v.DriftSmoothing, dt*60)
	next.Drift = prev.Drift + (math.Abs(lateral)-prev.Drift)*smoothing

	move := speed * dt
	next.Position = prev.Position.Add(world.Forward(next.Heading).Mul(move))

	if boostActive {
		next.BoostEnergy = math.Max(0, prev.BoostEnergy-v.BoostDrain*dt)
	} else {
		next.BoostEnergy = math.Min(m.tuning.MaxBoostEnergy, prev.BoostEnergy+v.BoostRecharge*dt)
	}

	next.Speed = speed
	next.Distance = prev.Distance + math.Abs(move)
	return next
}
