package telemetry

import (
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// Status is the session mode shown on the HUD.
type Status string

const (
	StatusFreeRoam Status = "free-roam"
	StatusRace     Status = "race"
	StatusPaused   Status = "paused"
)

// DefaultCheckpointCount is the gate count published before a session sets its own.
const DefaultCheckpointCount = 6

// Snapshot is the published HUD telemetry.
type Snapshot struct {
	Speed            float64  `json:"speed"`    // km/h
	Gear             int      `json:"gear"`     // derived from Speed
	Distance         float64  `json:"distance"` // km
	Drift            float64  `json:"drift"`
	BoostEnergy      float64  `json:"boostEnergy"`
	CheckpointIndex  int      `json:"checkpointIndex"`
	TotalCheckpoints int      `json:"totalCheckpoints"`
	LapTime          float64  `json:"lapTime"`
	BestLap          *float64 `json:"bestLap,omitempty"`
	LastLap          *float64 `json:"lastLap,omitempty"`
	Lap              int      `json:"lap"`
	Status           Status   `json:"status"`
}

// Defaults returns the snapshot a fresh session starts with.
func Defaults(totalCheckpoints int) Snapshot {
	return Snapshot{
		Gear:             1,
		BoostEnergy:      100,
		TotalCheckpoints: totalCheckpoints,
		Status:           StatusFreeRoam,
	}
}

// Patch carries the fields to overwrite; nil fields are preserved.
type Patch struct {
	Speed            *float64
	Gear             *int
	Distance         *float64
	Drift            *float64
	BoostEnergy      *float64
	CheckpointIndex  *int
	TotalCheckpoints *int
	LapTime          *float64
	BestLap          *float64
	LastLap          *float64
	Lap              *int
	Status           *Status
}

// Value returns a pointer to v, for building patches.
func Value[T any](v T) *T {
	return &v
}

// Apply returns s with every non-nil field of p written over it.
func (p Patch) Apply(s Snapshot) Snapshot {
	if p.Speed != nil {
		s.Speed = *p.Speed
	}
	if p.Gear != nil {
		s.Gear = *p.Gear
	}
	if p.Distance != nil {
		s.Distance = *p.Distance
	}
	if p.Drift != nil {
		s.Drift = *p.Drift
	}
	if p.BoostEnergy != nil {
		s.BoostEnergy = *p.BoostEnergy
	}
	if p.CheckpointIndex != nil {
		s.CheckpointIndex = *p.CheckpointIndex
	}
	if p.TotalCheckpoints != nil {
		s.TotalCheckpoints = *p.TotalCheckpoints
	}
	if p.LapTime != nil {
		s.LapTime = *p.LapTime
	}
	if p.BestLap != nil {
		s.BestLap = Value(*p.BestLap)
	}
	if p.LastLap != nil {
		s.LastLap = Value(*p.LastLap)
	}
	if p.Lap != nil {
		s.Lap = *p.Lap
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	return s
}

// Gear derives the displayed gear from speed: one gear per 30 km/h, 1..7.
func Gear(speedKmh float64) int {
	return int(math.Max(1, math.Ceil(mgl64.Clamp(speedKmh/30, 1, 7))))
}

// Store holds the latest published snapshot. Every update replaces the whole
// snapshot, so a reader never observes fields from two different publishes.
type Store struct {
	current  atomic.Pointer[Snapshot]
	defaults Snapshot

	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a store holding defaults.
func NewStore(defaults Snapshot) *Store {
	s := &Store{
		defaults: defaults,
		subs:     make(map[int]chan Snapshot),
	}
	s.current.Store(cloneSnapshot(defaults))
	return s
}

// Snapshot returns the latest published telemetry.
func (s *Store) Snapshot() Snapshot {
	return *cloneSnapshot(*s.current.Load())
}

// Merge publishes the current snapshot with p applied and returns it.
func (s *Store) Merge(p Patch) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Apply(*s.current.Load())
	s.current.Store(cloneSnapshot(next))
	s.notify(next)
	return next
}

// Reset restores the defaults the store was created with.
func (s *Store) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(cloneSnapshot(s.defaults))
	s.notify(s.defaults)
	return s.defaults
}

// Subscribe returns a channel receiving every published snapshot. A slow
// subscriber loses older snapshots, never the latest one, and never blocks
// the publisher. cancel closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, buffer)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// notify must be called with mu held.
func (s *Store) notify(snap Snapshot) {
	for _, ch := range s.subs {
		Offer(ch, *cloneSnapshot(snap))
	}
}

// JSON returns the latest snapshot encoded as JSON.
func (s *Store) JSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Offer sends v on ch, dropping the oldest queued value when ch is full.
// On an unbuffered channel v is dropped unless a receiver is waiting.
func Offer[T any](ch chan T, v T) {
	if cap(ch) == 0 {
		select {
		case ch <- v:
		default:
		}
		return
	}
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func cloneSnapshot(s Snapshot) *Snapshot {
	c := s
	if s.BestLap != nil {
		c.BestLap = Value(*s.BestLap)
	}
	if s.LastLap != nil {
		c.LastLap = Value(*s.LastLap)
	}
	return &c
}
