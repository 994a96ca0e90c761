package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-drive/backend/internal/vehicle"
	"x-drive/backend/internal/world"
)

func assertVecInDelta(t *testing.T, expected, actual world.Vector3) {
	t.Helper()
	assert.True(t, expected.ApproxEqualThreshold(actual, 1e-9), "expected %v, got %v", expected, actual)
}

func TestCompute_NilVehicle(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)
	prev := world.Vector3{1, 2, 3}

	pose, ok := rig.Compute(nil, 0, prev, 1.0/60)
	assert.False(t, ok)
	assert.Equal(t, prev, pose.Position)
	assert.Equal(t, world.Vector3{}, pose.LookAt)
}

func TestTarget_RotatesWithHeading(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)

	assertVecInDelta(t, world.Vector3{0, 4.5, 9}, rig.Target(vehicle.State{}))
	assertVecInDelta(t, world.Vector3{10 + 9, 4.5, 0}, rig.Target(vehicle.State{
		Position: world.Vector3{10, 0, 0},
		Heading:  math.Pi / 2,
	}))
}

func TestCompute_ConvergesWithoutOvershoot(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)
	vs := &vehicle.State{Position: world.Vector3{50, 0, -200}, Heading: 0.3}
	target := rig.Target(*vs)

	pos := rig.Initial()
	dist := world.Distance(pos, target)
	for i := 0; i < 30; i++ {
		pose, ok := rig.Compute(vs, 0, pos, 1.0/240)
		require.True(t, ok)
		next := world.Distance(pose.Position, target)
		require.LessOrEqual(t, next, dist)
		// each step stays on the segment towards the target
		require.InDelta(t, world.Distance(pos, target), world.Distance(pos, pose.Position)+next, 1e-6)
		pos, dist = pose.Position, next
	}
	assert.Less(t, dist, 1e-3)
}

func TestCompute_FrameRateIndependent(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)
	vs := &vehicle.State{Position: world.Vector3{0, 0, -10}}
	start := world.Vector3{0, 4, 12}

	coarse, _ := rig.Compute(vs, 0, start, 1.0/60)
	fine := start
	for i := 0; i < 4; i++ {
		p, _ := rig.Compute(vs, 0, fine, 1.0/240)
		fine = p.Position
	}
	assertVecInDelta(t, coarse.Position, fine)
}

func TestCompute_ZeroDeltaKeepsPosition(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)
	prev := world.Vector3{7, 7, 7}

	pose, ok := rig.Compute(&vehicle.State{}, 0, prev, 0)
	require.True(t, ok)
	assert.Equal(t, prev, pose.Position)
	assertVecInDelta(t, world.Vector3{0, 1.2, 0}, pose.LookAt)
}

func TestCompute_LookBias(t *testing.T) {
	rig := NewRig(world.DefaultTuning().Camera)
	vs := &vehicle.State{Position: world.Vector3{10, 0, 10}}

	tests := []struct {
		bias     int
		heading  float64
		expected world.Vector3
	}{
		{0, 0, world.Vector3{10, 1.2, 10}},
		{1, 0, world.Vector3{14, 1.2, 10}},
		{-1, 0, world.Vector3{6, 1.2, 10}},
		{1, math.Pi / 2, world.Vector3{10, 1.2, 6}},
	}
	for _, tt := range tests {
		vs.Heading = tt.heading
		pose, _ := rig.Compute(vs, tt.bias, rig.Initial(), 1.0/60)
		assertVecInDelta(t, tt.expected, pose.LookAt)
	}
}
