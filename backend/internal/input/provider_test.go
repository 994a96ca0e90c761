package input

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProvider_KeyEvents(t *testing.T) {
	p := NewProvider(nil)

	assert.True(t, p.Press("KeyW"))
	assert.True(t, p.Press("ArrowLeft"))
	assert.True(t, p.Press("ShiftRight"))
	assert.False(t, p.Press("KeyZ"))

	assert.Equal(t, ControlState{Forward: true, TurnLeft: true, Boost: true}, p.Snapshot())

	assert.True(t, p.Release("KeyW"))
	assert.Equal(t, ControlState{TurnLeft: true, Boost: true}, p.Snapshot())

	p.ReleaseAll()
	assert.Equal(t, ControlState{}, p.Snapshot())
}

func TestProvider_CustomKeyMap(t *testing.T) {
	p := NewProvider(map[string]Action{"KeyI": Forward})
	assert.False(t, p.Press("KeyW"))
	assert.True(t, p.Press("KeyI"))
	assert.True(t, p.Snapshot().Forward)
}

func TestProvider_ConcurrentEvents(t *testing.T) {
	p := NewProvider(nil)

	var wg sync.WaitGroup
	for _, code := range []string{"KeyW", "KeyA", "KeyD", "Space"} {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.Press(code)
				_ = p.Snapshot()
			}
		}(code)
	}
	wg.Wait()
	assert.Equal(t, ControlState{Forward: true, TurnLeft: true, TurnRight: true, Brake: true}, p.Snapshot())
}

func TestControlState(t *testing.T) {
	assert.Equal(t, 1.0, ControlState{TurnLeft: true}.Steering())
	assert.Equal(t, -1.0, ControlState{TurnRight: true}.Steering())
	assert.Equal(t, 0.0, ControlState{TurnLeft: true, TurnRight: true}.Steering())

	assert.Equal(t, 1, ControlState{LookLeft: true}.LookBias())
	assert.Equal(t, -1, ControlState{LookRight: true}.LookBias())
	assert.Equal(t, 1, ControlState{LookLeft: true, LookRight: true}.LookBias())
	assert.Equal(t, 0, ControlState{}.LookBias())
}

func TestControlState_With(t *testing.T) {
	var c ControlState
	for _, a := range Actions {
		c = c.With(a, true)
	}
	assert.Equal(t, ControlState{true, true, true, true, true, true, true, true}, c)

	c = c.With(Brake, false).With(Action("unknown"), false)
	assert.False(t, c.Brake)
	assert.True(t, c.Boost)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("turnLeft")
	assert.True(t, ok)
	assert.Equal(t, TurnLeft, a)

	_, ok = ParseAction("jump")
	assert.False(t, ok)
}
