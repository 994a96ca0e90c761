package world

import "github.com/pkg/errors"

var (
	// ErrNoCheckpoints is returned for a lap without checkpoints.
	ErrNoCheckpoints = errors.New("checkpoint sequence is empty")
	// ErrInvalidRadius is returned for a non-positive trigger radius.
	ErrInvalidRadius = errors.New("checkpoint trigger radius must be positive")
)

// Checkpoints is the ordered, cyclic sequence of gates that defines a lap.
// It is immutable once built.
type Checkpoints struct {
	points []Vector3
}

// DefaultCheckpointPositions is the six-gate loop around the city block.
func DefaultCheckpointPositions() []Vector3 {
	return []Vector3{
		{0, 0, -120},
		{-160, 0, -80},
		{-220, 0, 40},
		{-120, 0, 200},
		{80, 0, 240},
		{220, 0, 60},
	}
}

// NewCheckpoints copies points into a new sequence.
func NewCheckpoints(points []Vector3) (*Checkpoints, error) {
	if len(points) == 0 {
		return nil, ErrNoCheckpoints
	}
	cp := make([]Vector3, len(points))
	copy(cp, points)
	return &Checkpoints{points: cp}, nil
}

// Len returns the number of gates in one lap.
func (c *Checkpoints) Len() int {
	return len(c.points)
}

// At returns gate i, wrapping around the lap.
func (c *Checkpoints) At(i int) Vector3 {
	n := len(c.points)
	return c.points[((i%n)+n)%n]
}

// Positions returns a copy of the gate positions.
func (c *Checkpoints) Positions() []Vector3 {
	out := make([]Vector3, len(c.points))
	copy(out, c.points)
	return out
}
