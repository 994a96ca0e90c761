// Package lap tracks checkpoint progression and lap timing.
//
// Only the current target gate is tested each frame, with a single radius
// check at the sampled position. A car that skips a gate, or crosses its
// radius entirely between two samples, does not advance the cursor until it
// comes back through that gate.
package lap

import (
	"x-drive/backend/internal/world"
)

// Progress is the lap state of the car.
type Progress struct {
	Cursor         int     `json:"cursor"` // total gate crossings, never wraps
	ElapsedLapTime float64 `json:"elapsed"`
	BestLapTime    float64 `json:"best,omitempty"`
	HasBestLap     bool    `json:"has_best"`
	LastLapTime    float64 `json:"last,omitempty"`
	LapsCompleted  int     `json:"laps"`
}

// Index returns the target gate for a lap of n gates.
func (p Progress) Index(n int) int {
	if n <= 0 {
		return 0
	}
	return p.Cursor % n
}

// Accumulate adds dt to the running lap time. Invalid deltas are dropped.
func (p Progress) Accumulate(dt float64) Progress {
	if world.ValidDelta(dt) {
		p.ElapsedLapTime += dt
	}
	return p
}

// Event describes what one Advance call registered.
type Event struct {
	CheckpointHit bool    `json:"checkpoint_hit"`
	Checkpoint    int     `json:"checkpoint"` // gate that was hit
	LapCompleted  bool    `json:"lap_completed"`
	LapTime       float64 `json:"lap_time,omitempty"`
	NewBest       bool    `json:"new_best"`
}

// Tracker advances Progress against a checkpoint sequence.
type Tracker struct {
	checkpoints *world.Checkpoints
	radius      float64
}

// NewTracker rejects an empty sequence or a non-positive radius.
func NewTracker(checkpoints *world.Checkpoints, radius float64) (*Tracker, error) {
	if checkpoints == nil || checkpoints.Len() == 0 {
		return nil, world.ErrNoCheckpoints
	}
	if radius <= 0 {
		return nil, world.ErrInvalidRadius
	}
	return &Tracker{checkpoints: checkpoints, radius: radius}, nil
}

// Len returns the number of gates per lap.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return t.checkpoints.Len()
}

// Target returns the position of the gate the car must reach next.
func (t *Tracker) Target(p Progress) world.Vector3 {
	return t.checkpoints.At(p.Cursor)
}

// Advance registers at most one gate crossing for position.
func (t *Tracker) Advance(position world.Vector3, p Progress) (Progress, Event) {
	var ev Event
	if t == nil {
		return p, ev
	}

	n := t.checkpoints.Len()
	target := p.Index(n)
	if world.Distance(position, t.checkpoints.At(target)) >= t.radius {
		return p, ev
	}

	p.Cursor++
	ev.CheckpointHit = true
	ev.Checkpoint = target

	if p.Cursor%n == 0 {
		ev.LapCompleted = true
		ev.LapTime = p.ElapsedLapTime
		if !p.HasBestLap || p.ElapsedLapTime < p.BestLapTime {
			p.BestLapTime = p.ElapsedLapTime
			p.HasBestLap = true
			ev.NewBest = true
		}
		p.LastLapTime = p.ElapsedLapTime
		p.LapsCompleted++
		p.ElapsedLapTime = 0
	}
	return p, ev
}
