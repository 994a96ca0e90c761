package game

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/camera"
	"x-drive/backend/internal/input"
	"x-drive/backend/internal/lap"
	"x-drive/backend/internal/telemetry"
	"x-drive/backend/internal/vehicle"
	"x-drive/backend/internal/world"
)

// SessionConfig describes the track and constants of a session.
type SessionConfig struct {
	Tuning      world.Tuning
	Checkpoints []world.Vector3
	// Scene, when set, holds the render anchors. While the vehicle anchor is
	// not mounted, Step does nothing.
	Scene *world.Manager
}

// DefaultSessionConfig is the stock car on the stock loop.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Tuning:      world.DefaultTuning(),
		Checkpoints: world.DefaultCheckpointPositions(),
	}
}

// VehiclePose is what the display layer needs to place the chassis.
type VehiclePose struct {
	Position world.Vector3 `json:"position"`
	Heading  float64       `json:"heading"`
}

// Frame is everything published after one simulated tick.
type Frame struct {
	Tick      uint64             `json:"tick"`
	Vehicle   VehiclePose        `json:"vehicle"`
	Camera    camera.Pose        `json:"camera"`
	Telemetry telemetry.Snapshot `json:"telemetry"`
	Event     lap.Event          `json:"event"`
}

// Session is the simulation context of the single car. It owns the vehicle
// state, lap progress, camera smoothing state and the telemetry store.
type Session struct {
	tuning      world.Tuning
	checkpoints *world.Checkpoints
	model       *vehicle.Model
	tracker     *lap.Tracker
	rig         *camera.Rig
	store       *telemetry.Store
	scene       *world.Manager
	logger      zerolog.Logger

	mu       sync.Mutex
	vehicle  vehicle.State
	progress lap.Progress
	camPos   world.Vector3
	tick     uint64
	racing   bool
	paused   bool
	last     Frame

	subsMu  sync.Mutex
	subs    map[int]chan Frame
	nextSub int
}

// NewSession validates the configuration and builds a session at rest.
func NewSession(cfg SessionConfig, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tuning")
	}
	checkpoints, err := world.NewCheckpoints(cfg.Checkpoints)
	if err != nil {
		return nil, errors.Wrap(err, "invalid track")
	}
	tracker, err := lap.NewTracker(checkpoints, cfg.Tuning.TriggerRadius)
	if err != nil {
		return nil, errors.Wrap(err, "invalid track")
	}

	s := &Session{
		tuning:      cfg.Tuning,
		checkpoints: checkpoints,
		model:       vehicle.NewModel(cfg.Tuning),
		tracker:     tracker,
		rig:         camera.NewRig(cfg.Tuning.Camera),
		store:       telemetry.NewStore(telemetry.Defaults(checkpoints.Len())),
		scene:       cfg.Scene,
		logger:      logger.With().Str("component", "Session").Logger(),
		subs:        make(map[int]chan Frame),
	}
	s.resetLocked()

	s.logger.Info().
		Int("checkpoints", checkpoints.Len()).
		Float64("trigger_radius", cfg.Tuning.TriggerRadius).
		Msg("session ready")
	return s, nil
}

// Checkpoints returns the track of the session.
func (s *Session) Checkpoints() *world.Checkpoints {
	return s.checkpoints
}

// Tuning returns the compiled-in constants of the session.
func (s *Session) Tuning() world.Tuning {
	return s.tuning
}

// Telemetry returns the store the display layer reads from.
func (s *Session) Telemetry() *telemetry.Store {
	return s.store
}

// Scene returns the render anchors, or nil.
func (s *Session) Scene() *world.Manager {
	return s.scene
}

// Step simulates one tick of dt seconds under controls and publishes the
// resulting frame. An invalid dt, or an unmounted vehicle anchor, leaves the
// session untouched and returns the last frame.
func (s *Session) Step(controls input.ControlState, dt float64) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !world.ValidDelta(dt) {
		s.logger.Debug().Float64("dt", dt).Msg("skipping step with invalid delta")
		return s.last
	}
	if s.scene != nil {
		if _, mounted := s.scene.GetObject(world.VehicleID); !mounted {
			return s.last
		}
	}

	s.tick++
	s.vehicle = s.model.Step(controls, dt, s.vehicle)

	s.progress = s.progress.Accumulate(dt)
	var ev lap.Event
	s.progress, ev = s.tracker.Advance(s.vehicle.Position, s.progress)
	if ev.CheckpointHit {
		s.racing = true
		s.logCrossing(ev)
	}

	pose, _ := s.rig.Compute(&s.vehicle, controls.LookBias(), s.camPos, dt)
	s.camPos = pose.Position

	if s.scene != nil {
		s.scene.UpdateObjectState(world.VehicleID, s.vehicle.Position, s.vehicle.Heading)
	}

	snap := s.store.Merge(s.patchLocked())
	s.last = Frame{
		Tick:      s.tick,
		Vehicle:   VehiclePose{Position: s.vehicle.Position, Heading: s.vehicle.Heading},
		Camera:    pose,
		Telemetry: snap,
		Event:     ev,
	}
	s.publish(s.last)
	return s.last
}

func (s *Session) logCrossing(ev lap.Event) {
	if !ev.LapCompleted {
		s.logger.Debug().Int("checkpoint", ev.Checkpoint).Msg("checkpoint reached")
		return
	}
	s.logger.Info().
		Int("lap", s.progress.LapsCompleted).
		Float64("lap_time", ev.LapTime).
		Float64("best", s.progress.BestLapTime).
		Bool("new_best", ev.NewBest).
		Msg("lap completed")
}

// patchLocked builds the per-frame telemetry merge.
func (s *Session) patchLocked() telemetry.Patch {
	speedKmh := s.vehicle.SpeedKmh(s.tuning)
	p := telemetry.Patch{
		Speed:            telemetry.Value(speedKmh),
		Gear:             telemetry.Value(telemetry.Gear(speedKmh)),
		Distance:         telemetry.Value(s.vehicle.DistanceKm()),
		Drift:            telemetry.Value(s.vehicle.Drift),
		BoostEnergy:      telemetry.Value(s.vehicle.BoostEnergy),
		LapTime:          telemetry.Value(s.progress.ElapsedLapTime),
		CheckpointIndex:  telemetry.Value(s.progress.Index(s.checkpoints.Len())),
		TotalCheckpoints: telemetry.Value(s.checkpoints.Len()),
		Lap:              telemetry.Value(s.progress.LapsCompleted),
		Status:           telemetry.Value(s.statusLocked()),
	}
	if s.progress.HasBestLap {
		p.BestLap = telemetry.Value(s.progress.BestLapTime)
	}
	if s.progress.LapsCompleted > 0 {
		p.LastLap = telemetry.Value(s.progress.LastLapTime)
	}
	return p
}

func (s *Session) statusLocked() telemetry.Status {
	switch {
	case s.paused:
		return telemetry.StatusPaused
	case s.racing:
		return telemetry.StatusRace
	}
	return telemetry.StatusFreeRoam
}

// SetPaused flags the session as paused on the HUD.
func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = paused
	s.last.Telemetry = s.store.Merge(telemetry.Patch{Status: telemetry.Value(s.statusLocked())})
	s.publish(s.last)
}

// Reset puts the car back at the start and restores default telemetry.
func (s *Session) Reset() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.logger.Info().Msg("session reset")
	s.publish(s.last)
	return s.last
}

func (s *Session) resetLocked() {
	s.vehicle = vehicle.NewState(s.tuning)
	s.progress = lap.Progress{}
	s.camPos = s.rig.Initial()
	s.racing = false
	s.tick = 0

	snap := s.store.Reset()
	if s.paused {
		snap = s.store.Merge(telemetry.Patch{Status: telemetry.Value(telemetry.StatusPaused)})
	}
	if s.scene != nil {
		s.scene.UpdateObjectState(world.VehicleID, s.vehicle.Position, s.vehicle.Heading)
	}

	s.last = Frame{
		Vehicle:   VehiclePose{Position: s.vehicle.Position, Heading: s.vehicle.Heading},
		Camera:    camera.Pose{Position: s.camPos, LookAt: s.vehicle.Position.Add(world.Up.Mul(s.tuning.Camera.LookHeight))},
		Telemetry: snap,
	}
}

// LatestFrame returns the last published frame.
func (s *Session) LatestFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Vehicle returns the current vehicle state.
func (s *Session) Vehicle() vehicle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle
}

// Progress returns the current lap progress.
func (s *Session) Progress() lap.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Subscribe streams published frames. Slow subscribers skip frames but
// always receive the latest one.
func (s *Session) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Frame, buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Session) publish(f Frame) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		telemetry.Offer(ch, f)
	}
}
