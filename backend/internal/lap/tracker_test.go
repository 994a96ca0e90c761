package lap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-drive/backend/internal/world"
)

var (
	gateA = world.Vector3{0, 0, -120}
	gateB = world.Vector3{100, 0, 0}
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	checkpoints, err := world.NewCheckpoints([]world.Vector3{gateA, gateB})
	require.NoError(t, err)
	tr, err := NewTracker(checkpoints, 32)
	require.NoError(t, err)
	return tr
}

func TestNewTracker_Errors(t *testing.T) {
	_, err := NewTracker(nil, 32)
	assert.ErrorIs(t, err, world.ErrNoCheckpoints)

	checkpoints, err := world.NewCheckpoints([]world.Vector3{gateA})
	require.NoError(t, err)
	_, err = NewTracker(checkpoints, 0)
	assert.ErrorIs(t, err, world.ErrInvalidRadius)
	_, err = NewTracker(checkpoints, -1)
	assert.ErrorIs(t, err, world.ErrInvalidRadius)
}

func TestAdvance_HitsTargetOnce(t *testing.T) {
	tr := newTracker(t)
	var p Progress

	p, ev := tr.Advance(world.Vector3{}, p)
	assert.False(t, ev.CheckpointHit)
	assert.Equal(t, 0, p.Cursor)

	p, ev = tr.Advance(world.Vector3{0, 0, -110}, p)
	assert.True(t, ev.CheckpointHit)
	assert.Equal(t, 0, ev.Checkpoint)
	assert.Equal(t, 1, p.Cursor)
	assert.False(t, ev.LapCompleted)

	// staying inside the gate does not count twice
	p, ev = tr.Advance(world.Vector3{0, 0, -110}, p)
	assert.False(t, ev.CheckpointHit)
	assert.Equal(t, 1, p.Cursor)
}

func TestAdvance_RadiusIsExclusive(t *testing.T) {
	tr := newTracker(t)

	p, ev := tr.Advance(world.Vector3{0, 0, -88}, Progress{})
	assert.False(t, ev.CheckpointHit)
	assert.Equal(t, 0, p.Cursor)

	_, ev = tr.Advance(world.Vector3{0, 0, -88.01}, Progress{})
	assert.True(t, ev.CheckpointHit)
}

func TestAdvance_OutOfOrderGateIsIgnored(t *testing.T) {
	tr := newTracker(t)

	p, ev := tr.Advance(gateB, Progress{})
	assert.False(t, ev.CheckpointHit)
	assert.Equal(t, 0, p.Cursor)
	assert.Equal(t, gateA, tr.Target(p))
}

func TestAdvance_LapTiming(t *testing.T) {
	tr := newTracker(t)
	var (
		p  Progress
		ev Event
	)

	p = p.Accumulate(45)
	p, _ = tr.Advance(gateA, p)
	p, ev = tr.Advance(gateB, p)
	require.True(t, ev.LapCompleted)
	assert.Equal(t, 1, ev.Checkpoint)
	assert.Equal(t, 45.0, ev.LapTime)
	assert.True(t, ev.NewBest)
	assert.True(t, p.HasBestLap)
	assert.Equal(t, 45.0, p.BestLapTime)
	assert.Equal(t, 45.0, p.LastLapTime)
	assert.Equal(t, 0.0, p.ElapsedLapTime)
	assert.Equal(t, 1, p.LapsCompleted)
	assert.Equal(t, 0, p.Index(tr.Len()))

	p = p.Accumulate(50)
	p, _ = tr.Advance(gateA, p)
	p, ev = tr.Advance(gateB, p)
	require.True(t, ev.LapCompleted)
	assert.False(t, ev.NewBest)
	assert.Equal(t, 45.0, p.BestLapTime)
	assert.Equal(t, 50.0, p.LastLapTime)
	assert.Equal(t, 2, p.LapsCompleted)
	assert.Equal(t, 4, p.Cursor)

	p = p.Accumulate(40)
	p, _ = tr.Advance(gateA, p)
	p, ev = tr.Advance(gateB, p)
	assert.True(t, ev.NewBest)
	assert.Equal(t, 40.0, p.BestLapTime)
}

func TestAdvance_OneGatePerFrame(t *testing.T) {
	tests := []struct {
		name  string
		gates []world.Vector3
	}{
		{"gates on one spot", []world.Vector3{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}},
		{"gates side by side", []world.Vector3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}},
		{"gates around the car", []world.Vector3{{-20, 0, 0}, {0, 0, 25}, {20, 0, -10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkpoints, err := world.NewCheckpoints(tt.gates)
			require.NoError(t, err)
			tr, err := NewTracker(checkpoints, 32)
			require.NoError(t, err)

			var (
				p  Progress
				ev Event
			)
			for frame := 1; frame <= 2; frame++ {
				p, ev = tr.Advance(world.Vector3{}, p)
				require.True(t, ev.CheckpointHit)
				assert.Equal(t, frame-1, ev.Checkpoint)
				assert.Equal(t, frame, p.Cursor)
				assert.False(t, ev.LapCompleted)
				assert.Equal(t, 0, p.LapsCompleted)
			}

			p, ev = tr.Advance(world.Vector3{}, p)
			assert.Equal(t, 3, p.Cursor)
			assert.True(t, ev.LapCompleted)
			assert.Equal(t, 1, p.LapsCompleted)
		})
	}
}

func TestAdvance_SingleGateLap(t *testing.T) {
	checkpoints, err := world.NewCheckpoints([]world.Vector3{gateA})
	require.NoError(t, err)
	tr, err := NewTracker(checkpoints, 32)
	require.NoError(t, err)

	p := Progress{}.Accumulate(12)
	p, ev := tr.Advance(gateA, p)
	assert.True(t, ev.LapCompleted)
	assert.Equal(t, 12.0, ev.LapTime)

	// still inside the radius: the next lap starts counting at once
	_, ev = tr.Advance(gateA, p)
	assert.True(t, ev.LapCompleted)
	assert.Equal(t, 0.0, ev.LapTime)
}

func TestAdvance_NilTracker(t *testing.T) {
	var tr *Tracker
	p := Progress{Cursor: 3, ElapsedLapTime: 1}

	next, ev := tr.Advance(gateA, p)
	assert.Equal(t, p, next)
	assert.Equal(t, Event{}, ev)
	assert.Equal(t, 0, tr.Len())
}

func TestProgress_Accumulate(t *testing.T) {
	p := Progress{}.Accumulate(0.5).Accumulate(0.25)
	assert.Equal(t, 0.75, p.ElapsedLapTime)

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Equal(t, 0.75, p.Accumulate(dt).ElapsedLapTime, "dt=%v", dt)
	}
}

func TestProgress_Index(t *testing.T) {
	p := Progress{Cursor: 7}
	assert.Equal(t, 1, p.Index(6))
	assert.Equal(t, 0, p.Index(0))
}
