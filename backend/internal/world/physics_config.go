package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// VehicleTuning holds the longitudinal, steering and boost constants of the car.
type VehicleTuning struct {
	MaxSpeed      float64 // forward cap without boost, units/s
	BoostSpeed    float64 // forward cap while boosting
	Acceleration  float64
	BrakeForce    float64
	TurnRate      float64 // radians/s at full steering authority
	Drag          float64 // per-frame decay at 60 Hz when coasting
	BoostDrain    float64 // energy/s
	BoostRecharge float64 // energy/s

	ReverseFactor float64 // reverse acceleration relative to Acceleration
	ReverseCap    float64 // reverse speed cap relative to MaxSpeed

	DriftLateral   float64 // lateral velocity estimate per unit of speed
	DriftSmoothing float64 // low-pass factor per 60 Hz frame
}

// CameraTuning holds the trailing camera constants.
type CameraTuning struct {
	Offset     Vector3 // trailing offset at heading 0
	DecayBase  float64
	LookHeight float64
	LookShift  float64
	Initial    Vector3
}

// Tuning groups every compile-time constant of the simulation.
type Tuning struct {
	Vehicle         VehicleTuning
	Camera          CameraTuning
	TriggerRadius   float64
	MaxBoostEnergy  float64
	KmhPerUnitSpeed float64
}

// DefaultTuning returns the constants the demo ships with.
func DefaultTuning() Tuning {
	return Tuning{
		Vehicle: VehicleTuning{
			MaxSpeed:       120,
			BoostSpeed:     160,
			Acceleration:   45,
			BrakeForce:     80,
			TurnRate:       mgl64.DegToRad(90),
			Drag:           0.94,
			BoostDrain:     25,
			BoostRecharge:  12,
			ReverseFactor:  0.6,
			ReverseCap:     0.4,
			DriftLateral:   0.05,
			DriftSmoothing: 0.1,
		},
		Camera: CameraTuning{
			Offset:     Vector3{0, 4.5, 9},
			DecayBase:  0.001,
			LookHeight: 1.2,
			LookShift:  4,
			Initial:    Vector3{0, 4, 12},
		},
		TriggerRadius:   32,
		MaxBoostEnergy:  100,
		KmhPerUnitSpeed: 3.6,
	}
}

// Validate rejects tunings the integrator cannot run with.
func (t Tuning) Validate() error {
	v := t.Vehicle
	switch {
	case v.MaxSpeed <= 0:
		return errors.New("max speed must be positive")
	case v.BoostSpeed < v.MaxSpeed:
		return errors.Errorf("boost speed %.1f below max speed %.1f", v.BoostSpeed, v.MaxSpeed)
	case v.Acceleration <= 0 || v.BrakeForce <= 0 || v.TurnRate <= 0:
		return errors.New("acceleration, brake force and turn rate must be positive")
	case v.Drag <= 0 || v.Drag > 1:
		return errors.Errorf("drag %.3f outside (0, 1]", v.Drag)
	case v.BoostDrain < 0 || v.BoostRecharge < 0:
		return errors.New("boost rates must not be negative")
	case v.DriftSmoothing <= 0 || v.DriftSmoothing > 1:
		return errors.Errorf("drift smoothing %.3f outside (0, 1]", v.DriftSmoothing)
	case t.Camera.DecayBase <= 0 || t.Camera.DecayBase >= 1:
		return errors.Errorf("camera decay base %.4f outside (0, 1)", t.Camera.DecayBase)
	case t.TriggerRadius <= 0:
		return ErrInvalidRadius
	case t.MaxBoostEnergy <= 0:
		return errors.New("max boost energy must be positive")
	}
	return nil
}
