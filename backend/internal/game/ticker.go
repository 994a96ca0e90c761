package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// MaxFrameDelta bounds the delta handed to systems after a stall.
const MaxFrameDelta = 250 * time.Millisecond

// ErrTickerRunning is returned by Start on a loop that is already running.
var ErrTickerRunning = errors.New("ticker is already running")

// TickSystem is one stage of the game loop.
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // lower runs first
}

// PauseListener is told when the loop is paused or resumed.
type PauseListener interface {
	SetPaused(paused bool)
}

// Ticker runs the registered systems at a fixed target rate.
type Ticker struct {
	targetTPS     int
	tickDuration  time.Duration
	maxTickTime   time.Duration
	maxFrameDelta time.Duration

	mu           sync.Mutex
	isRunning    bool
	isPaused     bool
	tickCount    uint64
	startTime    time.Time
	lastTickTime time.Time

	systems      []TickSystem
	systemsMutex sync.RWMutex

	perfMonitor *PerformanceMonitor
	instruments *Instruments

	cancel    context.CancelFunc
	done      chan struct{}
	pauseChan chan bool
	listeners []PauseListener

	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	logger           zerolog.Logger
	warningThreshold time.Duration
}

// NewTicker creates a loop running targetTPS ticks per second.
func NewTicker(targetTPS int, logger zerolog.Logger, instruments *Instruments) *Ticker {
	if targetTPS <= 0 {
		targetTPS = 60
	}

	tickDuration := time.Second / time.Duration(targetTPS)

	return &Ticker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2,
		maxFrameDelta:    MaxFrameDelta,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4),
		instruments:      instruments,
		pauseChan:        make(chan bool, 1),
		logger:           logger.With().Str("component", "Ticker").Logger(),
		warningThreshold: tickDuration / 2,
	}
}

// SetMaxFrameDelta changes the stall clamp. Non-positive values are ignored.
func (t *Ticker) SetMaxFrameDelta(d time.Duration) {
	if d > 0 {
		t.maxFrameDelta = d
	}
}

// TickDuration returns the target period of one tick.
func (t *Ticker) TickDuration() time.Duration {
	return t.tickDuration
}

// OnPause registers a listener for pause changes.
func (t *Ticker) OnPause(l PauseListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Start runs the loop in a goroutine until ctx is done or Stop is called.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return ErrTickerRunning
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.isRunning = true
	t.startTime = time.Now()
	t.lastTickTime = t.startTime
	done := t.done
	t.mu.Unlock()

	t.logger.Info().
		Int("tps", t.targetTPS).
		Dur("tick", t.tickDuration).
		Msg("game loop started")

	go t.gameLoop(ctx, done)
	return nil
}

// Stop ends the loop and waits for the current tick to finish.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	cancel, done := t.cancel, t.done
	ticks := t.tickCount
	t.mu.Unlock()

	cancel()
	<-done
	t.logger.Info().Uint64("ticks", ticks).Msg("game loop stopped")
}

// Pause suspends or resumes ticking. Listeners are told immediately.
func (t *Ticker) Pause(pause bool) {
	t.mu.Lock()
	changed := t.isPaused != pause
	t.isPaused = pause
	listeners := append([]PauseListener(nil), t.listeners...)
	t.mu.Unlock()

	if !changed {
		return
	}

	// keep only the latest request
	select {
	case <-t.pauseChan:
	default:
	}
	t.pauseChan <- pause

	for _, l := range listeners {
		l.SetPaused(pause)
	}
	t.logger.Info().Bool("paused", pause).Msg("pause toggled")
}

// IsPaused reports whether ticking is suspended.
func (t *Ticker) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isPaused
}

// RegisterSystem adds a system, keeping systems ordered by priority.
func (t *Ticker) RegisterSystem(system TickSystem) {
	t.systemsMutex.Lock()
	defer t.systemsMutex.Unlock()

	t.systems = append(t.systems, system)
	sort.SliceStable(t.systems, func(i, j int) bool {
		return t.systems[i].GetPriority() < t.systems[j].GetPriority()
	})

	t.perfMonitor.initSystemMetrics(system.GetName())

	t.logger.Debug().
		Str("system", system.GetName()).
		Int("priority", system.GetPriority()).
		Msg("system registered")
}

func (t *Ticker) gameLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case pause := <-t.pauseChan:
			for pause {
				select {
				case <-ctx.Done():
					return
				case pause = <-t.pauseChan:
				}
			}
			// do not hand the paused interval to the simulation
			t.mu.Lock()
			t.lastTickTime = time.Now()
			t.mu.Unlock()

		case tickTime := <-ticker.C:
			t.ExecuteTick(tickTime)
		}
	}
}

// ExecuteTick runs every system once for a tick observed at tickTime.
func (t *Ticker) ExecuteTick(tickTime time.Time) {
	tickStart := time.Now()

	t.mu.Lock()
	if t.lastTickTime.IsZero() {
		t.lastTickTime = tickTime.Add(-t.tickDuration)
	}
	deltaTime := tickTime.Sub(t.lastTickTime)
	late := deltaTime > t.tickDuration*2
	if late {
		t.skippedTicks++
	}
	t.tickCount++
	t.lastTickTime = tickTime
	t.mu.Unlock()

	if late {
		t.logger.Warn().
			Dur("delta", deltaTime).
			Dur("expected", t.tickDuration).
			Msg("large delay between ticks")
	}
	if deltaTime > t.maxFrameDelta {
		deltaTime = t.maxFrameDelta
	}

	t.executeAllSystems(deltaTime)

	totalTickTime := time.Since(tickStart)
	t.updateTickMetrics(totalTickTime)
	t.instruments.recordTick(context.Background(), totalTickTime, late)
	t.checkPerformance(totalTickTime)
}

func (t *Ticker) executeAllSystems(deltaTime time.Duration) {
	t.systemsMutex.RLock()
	systems := make([]TickSystem, len(t.systems))
	copy(systems, t.systems)
	t.systemsMutex.RUnlock()

	for _, system := range systems {
		t.executeSystem(system, deltaTime)
	}
}

func (t *Ticker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Str("system", systemName).
				Str("panic", fmt.Sprint(r)).
				Msg("system panicked")
			t.perfMonitor.recordError(systemName)
			t.instruments.recordSystemError(context.Background(), systemName)
		}
	}()

	err := system.Update(deltaTime)

	t.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		t.logger.Error().Err(err).Str("system", systemName).Msg("system failed")
		t.perfMonitor.recordError(systemName)
		t.instruments.recordSystemError(context.Background(), systemName)
	}
}

// GetTickCount returns the number of ticks executed so far.
func (t *Ticker) GetTickCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickCount
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	TargetTPS       int           `json:"target_tps"`
	ActualTPS       float64       `json:"actual_tps"`
	TickCount       uint64        `json:"tick_count"`
	Uptime          time.Duration `json:"uptime"`
	AverageTickTime time.Duration `json:"average_tick_time"`
	MaxObservedTick time.Duration `json:"max_observed_tick"`
	SkippedTicks    uint64        `json:"skipped_ticks"`
	IsRunning       bool          `json:"is_running"`
	IsPaused        bool          `json:"is_paused"`
	Systems         int           `json:"systems"`
}

// GetStats returns statistics of the loop.
func (t *Ticker) GetStats() Stats {
	t.systemsMutex.RLock()
	systems := len(t.systems)
	t.systemsMutex.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	var uptime time.Duration
	var actualTPS float64
	if !t.startTime.IsZero() {
		uptime = time.Since(t.startTime)
		if uptime > 0 {
			actualTPS = float64(t.tickCount) / uptime.Seconds()
		}
	}

	return Stats{
		TargetTPS:       t.targetTPS,
		ActualTPS:       actualTPS,
		TickCount:       t.tickCount,
		Uptime:          uptime,
		AverageTickTime: t.averageTickTime,
		MaxObservedTick: t.maxObservedTick,
		SkippedTicks:    t.skippedTicks,
		IsRunning:       t.isRunning,
		IsPaused:        t.isPaused,
		Systems:         systems,
	}
}

// Performance returns the per-system metrics.
func (t *Ticker) Performance() map[string]SystemMetrics {
	return t.perfMonitor.GetSystemsStats()
}

func (t *Ticker) updateTickMetrics(tickTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tickTime > t.maxObservedTick {
		t.maxObservedTick = tickTime
	}

	if t.averageTickTime == 0 {
		t.averageTickTime = tickTime
	} else {
		t.averageTickTime = (t.averageTickTime*9 + tickTime) / 10
	}
}

func (t *Ticker) checkPerformance(tickTime time.Duration) {
	if tickTime > t.maxTickTime {
		t.logger.Warn().
			Dur("tick", tickTime).
			Dur("max", t.maxTickTime).
			Msg("tick exceeded its maximum duration")
	} else if tickTime > t.warningThreshold {
		t.logger.Debug().
			Dur("tick", tickTime).
			Dur("target", t.tickDuration).
			Msg("slow tick")
	}
}
