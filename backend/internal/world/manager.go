package world

import (
	"fmt"
	"sort"
	"sync"
)

// ObjectKind tells the display layer what to place at an object's position.
type ObjectKind string

const (
	KindVehicle    ObjectKind = "vehicle"
	KindCheckpoint ObjectKind = "checkpoint"
)

// Object is a render anchor the display layer mounts a mesh on.
type Object struct {
	ID       string     `json:"id"`
	Kind     ObjectKind `json:"kind"`
	Index    int        `json:"index"`
	Position Vector3    `json:"position"`
	Heading  float64    `json:"heading"`
}

// Manager keeps the render anchors of the scene.
type Manager struct {
	objects map[string]*Object
	mu      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		objects: make(map[string]*Object),
	}
}

// NewTrackManager registers the vehicle anchor and one gate per checkpoint.
func NewTrackManager(checkpoints *Checkpoints, vehicleStart Vector3) *Manager {
	m := NewManager()
	m.AddObject(&Object{ID: VehicleID, Kind: KindVehicle, Position: vehicleStart})
	for i, p := range checkpoints.Positions() {
		m.AddObject(&Object{
			ID:       CheckpointID(i),
			Kind:     KindCheckpoint,
			Index:    i,
			Position: p,
		})
	}
	return m
}

// VehicleID is the anchor id of the single car.
const VehicleID = "vehicle"

// CheckpointID returns the anchor id of gate i.
func CheckpointID(i int) string {
	return fmt.Sprintf("checkpoint_%d", i)
}

func (m *Manager) AddObject(obj *Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.ID] = obj
}

func (m *Manager) RemoveObject(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, id)
}

// GetObject returns a copy of the anchor with the given id.
func (m *Manager) GetObject(id string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, exists := m.objects[id]
	if !exists {
		return Object{}, false
	}
	return *obj, true
}

// GetAllObjects returns copies of every anchor ordered by id.
func (m *Manager) GetAllObjects() []Object {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Object, 0, len(m.objects))
	for _, obj := range m.objects {
		result = append(result, *obj)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind > result[j].Kind
		}
		return result[i].Index < result[j].Index
	})
	return result
}

// UpdateObjectState moves an anchor. Unknown ids are ignored.
func (m *Manager) UpdateObjectState(id string, position Vector3, heading float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, exists := m.objects[id]
	if !exists {
		return false
	}
	obj.Position = position
	obj.Heading = heading
	return true
}
