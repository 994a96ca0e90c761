package input

import "sync"

// DefaultKeyMap maps browser KeyboardEvent.code values to actions.
var DefaultKeyMap = map[string]Action{
	"KeyW":       Forward,
	"ArrowUp":    Forward,
	"KeyS":       Backward,
	"ArrowDown":  Backward,
	"KeyA":       TurnLeft,
	"ArrowLeft":  TurnLeft,
	"KeyD":       TurnRight,
	"ArrowRight": TurnRight,
	"Space":      Brake,
	"ShiftLeft":  Boost,
	"ShiftRight": Boost,
	"KeyQ":       LookLeft,
	"KeyE":       LookRight,
}

// Provider turns key press/release events into a control snapshot.
// Events may arrive from any goroutine; the simulation reads one
// Snapshot at the start of each frame.
type Provider struct {
	mu     sync.Mutex
	keyMap map[string]Action
	state  ControlState
}

// NewProvider creates a provider. A nil keyMap uses DefaultKeyMap.
func NewProvider(keyMap map[string]Action) *Provider {
	if keyMap == nil {
		keyMap = DefaultKeyMap
	}
	return &Provider{keyMap: keyMap}
}

// Press handles a key-down event. It reports whether the code is mapped.
func (p *Provider) Press(code string) bool {
	return p.key(code, true)
}

// Release handles a key-up event. It reports whether the code is mapped.
func (p *Provider) Release(code string) bool {
	return p.key(code, false)
}

func (p *Provider) key(code string, pressed bool) bool {
	action, ok := p.keyMap[code]
	if !ok {
		return false
	}
	p.Set(action, pressed)
	return true
}

// Set drives an action directly, bypassing the key map.
func (p *Provider) Set(action Action, pressed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = p.state.With(action, pressed)
}

// ReleaseAll clears every held control.
func (p *Provider) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = ControlState{}
}

// Snapshot returns the current controls.
func (p *Provider) Snapshot() ControlState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
