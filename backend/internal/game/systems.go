package game

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/input"
)

// Priorities of the stock systems. Lower runs first.
const (
	PrioritySimulation = 10
	PriorityBroadcast  = 100
	PriorityHUD        = 150
	PriorityMetrics    = 200
)

// ControlSource yields the controls for the next frame.
type ControlSource interface {
	Snapshot() input.ControlState
}

// SimulationSystem advances the session once per tick with the controls held
// at the start of the tick.
type SimulationSystem struct {
	name        string
	priority    int
	session     *Session
	controls    ControlSource
	instruments *Instruments
}

func NewSimulationSystem(session *Session, controls ControlSource, instruments *Instruments) *SimulationSystem {
	return &SimulationSystem{
		name:        "SimulationSystem",
		priority:    PrioritySimulation,
		session:     session,
		controls:    controls,
		instruments: instruments,
	}
}

// Update steps the session by deltaTime.
func (s *SimulationSystem) Update(deltaTime time.Duration) error {
	if s.session == nil || s.controls == nil {
		return errors.New("simulation system is not wired")
	}
	frame := s.session.Step(s.controls.Snapshot(), deltaTime.Seconds())
	s.instruments.recordFrame(context.Background(), frame)
	return nil
}

func (s *SimulationSystem) GetName() string {
	return s.name
}

func (s *SimulationSystem) GetPriority() int {
	return s.priority
}

// FrameBroadcaster delivers frames to the display layer.
type FrameBroadcaster interface {
	BroadcastFrame(f Frame) error
	BroadcastLap(f Frame) error
}

// BroadcastSystem pushes the latest frame to a FrameBroadcaster at most once
// per interval. Lap completions are forwarded on the tick they happen.
type BroadcastSystem struct {
	name     string
	priority int
	target   FrameBroadcaster
	logger   zerolog.Logger

	frames <-chan Frame
	cancel func()

	broadcastInterval time.Duration
	lastBroadcast     time.Time
	pending           *Frame
	now               func() time.Time
}

// NewBroadcastSystem subscribes to session frames.
func NewBroadcastSystem(session *Session, target FrameBroadcaster, interval time.Duration, buffer int, logger zerolog.Logger) *BroadcastSystem {
	frames, cancel := session.Subscribe(buffer)
	return &BroadcastSystem{
		name:              "BroadcastSystem",
		priority:          PriorityBroadcast,
		target:            target,
		logger:            logger.With().Str("component", "BroadcastSystem").Logger(),
		frames:            frames,
		cancel:            cancel,
		broadcastInterval: interval,
		now:               time.Now,
	}
}

// Update drains the frames published since the last tick.
func (b *BroadcastSystem) Update(deltaTime time.Duration) error {
	var laps []Frame

drain:
	for {
		select {
		case f, ok := <-b.frames:
			if !ok {
				break drain
			}
			b.pending = &f
			if f.Event.LapCompleted {
				laps = append(laps, f)
			}
		default:
			break drain
		}
	}

	for _, f := range laps {
		if err := b.target.BroadcastLap(f); err != nil {
			return errors.Wrap(err, "broadcasting lap")
		}
	}

	if b.pending == nil {
		return nil
	}
	now := b.now()
	if now.Sub(b.lastBroadcast) < b.broadcastInterval {
		return nil
	}
	b.lastBroadcast = now

	f := *b.pending
	b.pending = nil
	if err := b.target.BroadcastFrame(f); err != nil {
		return errors.Wrapf(err, "broadcasting frame %d", f.Tick)
	}
	return nil
}

// Close drops the frame subscription.
func (b *BroadcastSystem) Close() {
	b.cancel()
}

func (b *BroadcastSystem) GetName() string {
	return b.name
}

func (b *BroadcastSystem) GetPriority() int {
	return b.priority
}

// MetricsSystem periodically logs loop and session statistics.
type MetricsSystem struct {
	name     string
	priority int
	ticker   *Ticker
	session  *Session
	logger   zerolog.Logger

	lastMetricsLog  time.Time
	metricsInterval time.Duration
	now             func() time.Time
}

func NewMetricsSystem(ticker *Ticker, session *Session, interval time.Duration, logger zerolog.Logger) *MetricsSystem {
	return &MetricsSystem{
		name:            "MetricsSystem",
		priority:        PriorityMetrics,
		ticker:          ticker,
		session:         session,
		logger:          logger.With().Str("component", "GameMetrics").Logger(),
		metricsInterval: interval,
		now:             time.Now,
	}
}

// Update logs the statistics when the interval has elapsed.
func (m *MetricsSystem) Update(deltaTime time.Duration) error {
	now := m.now()
	if m.lastMetricsLog.IsZero() {
		m.lastMetricsLog = now
		return nil
	}
	if now.Sub(m.lastMetricsLog) < m.metricsInterval {
		return nil
	}
	m.lastMetricsLog = now

	stats := m.ticker.GetStats()
	snap := m.session.Telemetry().Snapshot()

	m.logger.Info().
		Float64("tps", stats.ActualTPS).
		Int("target_tps", stats.TargetTPS).
		Uint64("ticks", stats.TickCount).
		Dur("avg_tick", stats.AverageTickTime).
		Uint64("late_ticks", stats.SkippedTicks).
		Int("lap", snap.Lap).
		Str("status", string(snap.Status)).
		Msg("loop metrics")

	if stats.ActualTPS > 0 && stats.ActualTPS < float64(stats.TargetTPS)*0.9 {
		m.logger.Warn().Float64("tps", stats.ActualTPS).Msg("tick rate dropped")
	}
	for _, name := range m.ticker.perfMonitor.Slow() {
		m.logger.Warn().Str("system", name).Msg("system is slow")
	}
	return nil
}

func (m *MetricsSystem) GetName() string {
	return m.name
}

func (m *MetricsSystem) GetPriority() int {
	return m.priority
}
