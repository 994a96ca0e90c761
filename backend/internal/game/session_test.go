package game

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-drive/backend/internal/input"
	"x-drive/backend/internal/telemetry"
	"x-drive/backend/internal/world"
)

func newTestSession(t *testing.T, checkpoints ...world.Vector3) *Session {
	t.Helper()
	cfg := DefaultSessionConfig()
	if len(checkpoints) > 0 {
		cfg.Checkpoints = checkpoints
	}
	s, err := NewSession(cfg, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewSession_RejectsBadTrack(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Checkpoints = nil
	_, err := NewSession(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, world.ErrNoCheckpoints))

	cfg = DefaultSessionConfig()
	cfg.Tuning.TriggerRadius = 0
	_, err = NewSession(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tuning")
}

func TestSession_InitialFrame(t *testing.T) {
	s := newTestSession(t)
	f := s.LatestFrame()

	assert.Equal(t, uint64(0), f.Tick)
	assert.Equal(t, world.Vector3{}, f.Vehicle.Position)
	assert.Equal(t, world.Vector3{0, 4, 12}, f.Camera.Position)
	assert.Equal(t, 1, f.Telemetry.Gear)
	assert.Equal(t, 100.0, f.Telemetry.BoostEnergy)
	assert.Equal(t, 6, f.Telemetry.TotalCheckpoints)
	assert.Equal(t, telemetry.StatusFreeRoam, f.Telemetry.Status)
	assert.Nil(t, f.Telemetry.BestLap)
}

func TestSession_StepInvalidDeltaIsNoop(t *testing.T) {
	s := newTestSession(t)
	before := s.LatestFrame()

	for _, dt := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		f := s.Step(input.ControlState{Forward: true}, dt)
		assert.Equal(t, before, f)
	}
	assert.Equal(t, 0.0, s.Vehicle().Speed)
}

func TestSession_StepPublishesTelemetry(t *testing.T) {
	s := newTestSession(t)

	var f Frame
	for i := 0; i < 60; i++ {
		f = s.Step(input.ControlState{Forward: true}, 1.0/60)
	}

	vs := s.Vehicle()
	assert.Equal(t, uint64(60), f.Tick)
	assert.InDelta(t, 45.0, vs.Speed, 1e-9)
	assert.InDelta(t, vs.Speed*3.6, f.Telemetry.Speed, 1e-9)
	assert.Equal(t, telemetry.Gear(vs.Speed*3.6), f.Telemetry.Gear)
	assert.InDelta(t, vs.Distance/1000, f.Telemetry.Distance, 1e-12)
	assert.InDelta(t, 1.0, f.Telemetry.LapTime, 1e-9)
	assert.Less(t, f.Vehicle.Position.Z(), 0.0)
	assert.Equal(t, f.Telemetry, s.Telemetry().Snapshot())
}

func TestSession_CheckpointSwitchesToRace(t *testing.T) {
	s := newTestSession(t, world.Vector3{0, 0, 0}, world.Vector3{0, 0, -1000})

	f := s.Step(input.ControlState{}, 0.1)
	assert.True(t, f.Event.CheckpointHit)
	assert.False(t, f.Event.LapCompleted)
	assert.Equal(t, 1, f.Telemetry.CheckpointIndex)
	assert.Equal(t, telemetry.StatusRace, f.Telemetry.Status)

	// second gate is out of reach
	f = s.Step(input.ControlState{}, 0.1)
	assert.False(t, f.Event.CheckpointHit)
	assert.Equal(t, 1, f.Telemetry.CheckpointIndex)
}

func TestSession_OverlappingGatesAdvanceOnePerFrame(t *testing.T) {
	s := newTestSession(t, world.Vector3{0, 0, 0}, world.Vector3{1, 0, 0}, world.Vector3{2, 0, 0})

	for _, expected := range []int{1, 2} {
		f := s.Step(input.ControlState{}, 0.1)
		require.True(t, f.Event.CheckpointHit)
		assert.False(t, f.Event.LapCompleted)
		assert.Equal(t, expected, f.Telemetry.CheckpointIndex)
		assert.Equal(t, 0, f.Telemetry.Lap)
	}

	f := s.Step(input.ControlState{}, 0.1)
	assert.True(t, f.Event.LapCompleted)
	assert.Equal(t, 0, f.Telemetry.CheckpointIndex)
	assert.Equal(t, 1, f.Telemetry.Lap)
	assert.Equal(t, 3, s.Progress().Cursor)
}

func TestSession_LapTiming(t *testing.T) {
	s := newTestSession(t, world.Vector3{0, 0, 0})

	f := s.Step(input.ControlState{}, 0.5)
	require.True(t, f.Event.LapCompleted)
	assert.InDelta(t, 0.5, f.Event.LapTime, 1e-9)
	assert.True(t, f.Event.NewBest)
	require.NotNil(t, f.Telemetry.BestLap)
	assert.InDelta(t, 0.5, *f.Telemetry.BestLap, 1e-9)
	assert.Equal(t, 1, f.Telemetry.Lap)
	assert.Equal(t, 0.0, f.Telemetry.LapTime)

	f = s.Step(input.ControlState{}, 0.75)
	assert.False(t, f.Event.NewBest)
	assert.InDelta(t, 0.5, *f.Telemetry.BestLap, 1e-9)
	require.NotNil(t, f.Telemetry.LastLap)
	assert.InDelta(t, 0.75, *f.Telemetry.LastLap, 1e-9)

	f = s.Step(input.ControlState{}, 0.25)
	assert.True(t, f.Event.NewBest)
	assert.InDelta(t, 0.25, *f.Telemetry.BestLap, 1e-9)
	assert.Equal(t, 3, s.Progress().LapsCompleted)
}

func TestSession_UnmountedVehicleSkipsFrame(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Scene = world.NewManager()
	s, err := NewSession(cfg, zerolog.Nop())
	require.NoError(t, err)

	f := s.Step(input.ControlState{Forward: true}, 0.1)
	assert.Equal(t, uint64(0), f.Tick)
	assert.Equal(t, 0.0, s.Vehicle().Speed)

	cfg.Scene.AddObject(&world.Object{ID: world.VehicleID, Kind: world.KindVehicle})
	f = s.Step(input.ControlState{Forward: true}, 0.1)
	assert.Equal(t, uint64(1), f.Tick)

	anchor, ok := cfg.Scene.GetObject(world.VehicleID)
	require.True(t, ok)
	assert.Equal(t, f.Vehicle.Position, anchor.Position)
}

func TestSession_PauseAndReset(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 10; i++ {
		s.Step(input.ControlState{Forward: true, Boost: true}, 0.1)
	}

	s.SetPaused(true)
	assert.Equal(t, telemetry.StatusPaused, s.Telemetry().Snapshot().Status)

	s.SetPaused(false)
	assert.Equal(t, telemetry.StatusFreeRoam, s.Telemetry().Snapshot().Status)

	f := s.Reset()
	assert.Equal(t, uint64(0), f.Tick)
	assert.Equal(t, 0.0, s.Vehicle().Speed)
	assert.Equal(t, telemetry.Defaults(6), s.Telemetry().Snapshot())
}

func TestSession_SubscribeReceivesFrames(t *testing.T) {
	s := newTestSession(t)
	frames, cancel := s.Subscribe(1)
	defer cancel()

	s.Step(input.ControlState{Forward: true}, 0.1)
	s.Step(input.ControlState{Forward: true}, 0.1)

	f := <-frames
	assert.Equal(t, uint64(2), f.Tick, "a full buffer keeps the newest frame")

	cancel()
	_, ok := <-frames
	assert.False(t, ok)
	cancel()
}
