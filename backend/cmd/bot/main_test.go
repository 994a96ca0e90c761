package main

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-drive/backend/internal/world"
)

func TestHeadingError(t *testing.T) {
	origin := world.Vector3{}
	tests := []struct {
		name     string
		heading  float64
		target   world.Vector3
		expected float64
	}{
		{"straight ahead", 0, world.Vector3{0, 0, -100}, 0},
		{"to the left", 0, world.Vector3{-100, 0, 0}, math.Pi / 2},
		{"to the right", 0, world.Vector3{100, 0, 0}, -math.Pi / 2},
		{"already turned left", math.Pi / 2, world.Vector3{-100, 0, 0}, 0},
		{"wraps around", 3 * math.Pi / 2, world.Vector3{0, 0, -100}, math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, headingError(origin, tt.heading, tt.target), 1e-9)
		})
	}
}

func TestDecide_Chase(t *testing.T) {
	never := func() float64 { return 1 }

	keys := decide("chase", driveState{Target: world.Vector3{0, 0, -100}, HasTarget: true, Boost: 100}, 0, never)
	assert.True(t, keys[keyForward])
	assert.False(t, keys[keyLeft])
	assert.False(t, keys[keyRight])
	assert.True(t, keys[keyBoost])

	keys = decide("chase", driveState{Target: world.Vector3{-100, 0, 0}, HasTarget: true, Boost: 100}, 0, never)
	assert.True(t, keys[keyLeft])
	assert.False(t, keys[keyBoost])

	keys = decide("chase", driveState{Target: world.Vector3{100, 0, -10}, HasTarget: true}, 0, never)
	assert.True(t, keys[keyRight])

	keys = decide("chase", driveState{}, 0, never)
	assert.Equal(t, map[string]bool{keyForward: true}, keys)
}

func TestDecide_OtherPatterns(t *testing.T) {
	keys := decide("circle", driveState{}, 0, nil)
	assert.True(t, keys[keyForward])
	assert.True(t, keys[keyLeft])

	keys = decide("random", driveState{}, 4*time.Second, func() float64 { return 0.5 })
	assert.True(t, keys[keyRight])
	assert.True(t, keys[keyBoost])
}

func TestBot_HandleMessage(t *testing.T) {
	b := NewBot("t", "ws://localhost/ws", "chase", time.Second, time.Millisecond, zerolog.Nop())

	require.NoError(t, b.handleMessage([]byte(`{"type":"create","id":"checkpoint_0","object_type":"checkpoint","index":0,"x":0,"y":0,"z":-120}`)))
	require.NoError(t, b.handleMessage([]byte(`{"type":"create","id":"vehicle","object_type":"vehicle","index":0,"x":0,"y":0,"z":0}`)))
	require.NoError(t, b.handleMessage([]byte(`{"type":"frame","tick":3,"vehicle":{"x":1,"y":0,"z":-2,"heading":0.1},"telemetry":{"checkpointIndex":0,"boostEnergy":80}}`)))
	require.NoError(t, b.handleMessage([]byte(`{"type":"lap","lap":1,"lap_time":50.5,"best_lap":50.5,"new_best":true}`)))

	st := b.snapshot()
	assert.True(t, st.HasTarget)
	assert.Equal(t, world.Vector3{0, 0, -120}, st.Target)
	assert.Equal(t, world.Vector3{1, 0, -2}, st.Position)
	assert.Equal(t, 0.1, st.Heading)
	assert.Equal(t, 80.0, st.Boost)
	assert.Equal(t, 1, b.Stats.Frames)
	assert.Equal(t, 1, b.Stats.Laps)
	assert.Equal(t, 50.5, b.Stats.BestLap)

	assert.Error(t, b.handleMessage([]byte(`not json`)))
}
