package camera

import (
	"x-drive/backend/internal/vehicle"
	"x-drive/backend/internal/world"
)

// Pose is where the camera sits and what it looks at.
type Pose struct {
	Position world.Vector3 `json:"position"`
	LookAt   world.Vector3 `json:"look_at"`
}

// Rig is a chase camera trailing the car.
type Rig struct {
	tuning world.CameraTuning
}

func NewRig(tuning world.CameraTuning) *Rig {
	return &Rig{tuning: tuning}
}

// Initial returns the camera position before the first frame.
func (r *Rig) Initial() world.Vector3 {
	return r.tuning.Initial
}

// Target returns the resting camera position behind vs.
func (r *Rig) Target(vs vehicle.State) world.Vector3 {
	return vs.Position.Add(world.RotateY(r.tuning.Offset, vs.Heading))
}

// Compute eases the camera from prev towards its resting position behind vs
// and aims it at the car, shifted sideways by lookBias (-1, 0, +1).
// A nil vs yields ok=false and a pose holding prev with no look-at target.
func (r *Rig) Compute(vs *vehicle.State, lookBias int, prev world.Vector3, dt float64) (Pose, bool) {
	if vs == nil {
		return Pose{Position: prev}, false
	}

	position := world.Lerp(prev, r.Target(*vs), world.DecayFactor(r.tuning.DecayBase, dt))

	shift := world.RotateY(world.Vector3{float64(lookBias) * r.tuning.LookShift, 0, 0}, vs.Heading)
	lookAt := vs.Position.Add(world.Up.Mul(r.tuning.LookHeight)).Add(shift)

	return Pose{Position: position, LookAt: lookAt}, true
}
