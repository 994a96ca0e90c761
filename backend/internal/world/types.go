package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 is the world-space vector used across the simulation.
type Vector3 = mgl64.Vec3

// Vertical axis of the world. The chassis rotates around it.
var Up = Vector3{0, 1, 0}

// forwardAxis is the direction the vehicle faces at heading 0.
var forwardAxis = Vector3{0, 0, -1}

// RotateY rotates v around the vertical axis by angle radians.
// Positive angles turn a -Z facing vector towards -X (left).
func RotateY(v Vector3, angle float64) Vector3 {
	return mgl64.Rotate3DY(angle).Mul3x1(v)
}

// Forward returns the unit vector the vehicle faces at the given heading.
func Forward(heading float64) Vector3 {
	return RotateY(forwardAxis, heading)
}

// Lerp moves a towards b by t.
func Lerp(a, b Vector3, t float64) Vector3 {
	return a.Add(b.Sub(a).Mul(t))
}

// DecayFactor converts a per-frame decay base at 60 Hz into an interpolation
// factor for a frame of dt seconds: 1 - base^(dt*60).
func DecayFactor(base, dt float64) float64 {
	if !ValidDelta(dt) {
		return 0
	}
	return 1 - math.Pow(base, dt*60)
}

// ValidDelta reports whether dt can be integrated.
func ValidDelta(dt float64) bool {
	return dt > 0 && !math.IsNaN(dt) && !math.IsInf(dt, 0)
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Vector3) float64 {
	return a.Sub(b).Len()
}
