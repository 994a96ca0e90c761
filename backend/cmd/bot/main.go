// Command bot drives the car over the websocket API, for smoke and soak tests.
package main

import (
	"encoding/json"
	"flag"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/logging"
	"x-drive/backend/internal/transport/ws"
	"x-drive/backend/internal/world"
)

// Key codes the bot presses.
const (
	keyForward = "KeyW"
	keyLeft    = "KeyA"
	keyRight   = "KeyD"
	keyBoost   = "ShiftLeft"
)

var botKeys = []string{keyForward, keyLeft, keyRight, keyBoost}

// steerDeadband is the heading error the bot tolerates without steering.
const steerDeadband = 0.05

// driveState is what the bot knows about the car.
type driveState struct {
	Position  world.Vector3
	Heading   float64
	Target    world.Vector3
	HasTarget bool
	Boost     float64
}

// headingError returns the signed turn, in (-pi, pi], that points the car at
// target. Positive means turn left.
func headingError(position world.Vector3, heading float64, target world.Vector3) float64 {
	d := target.Sub(position)
	desired := math.Atan2(-d.X(), -d.Z())
	diff := math.Mod(desired-heading, 2*math.Pi)
	if diff > math.Pi {
		diff -= 2 * math.Pi
	} else if diff <= -math.Pi {
		diff += 2 * math.Pi
	}
	return diff
}

// decide returns the keys to hold for a pattern.
func decide(pattern string, st driveState, elapsed time.Duration, rnd func() float64) map[string]bool {
	keys := map[string]bool{keyForward: true}

	switch pattern {
	case "circle":
		keys[keyLeft] = true

	case "random":
		switch r := rnd(); {
		case r < 0.3:
			keys[keyLeft] = true
		case r < 0.6:
			keys[keyRight] = true
		}
		// pulse boost every few seconds
		keys[keyBoost] = int(elapsed/(3*time.Second))%2 == 1

	default: // "chase"
		if !st.HasTarget {
			return keys
		}
		diff := headingError(st.Position, st.Heading, st.Target)
		switch {
		case diff > steerDeadband:
			keys[keyLeft] = true
		case diff < -steerDeadband:
			keys[keyRight] = true
		}
		keys[keyBoost] = math.Abs(diff) < 0.2 && st.Boost > 30
	}
	return keys
}

// Bot connects to the server and holds keys according to its pattern.
type Bot struct {
	ID          string
	ServerURL   string
	Pattern     string
	Duration    time.Duration
	CommandRate time.Duration
	Stats       BotStats

	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  zerolog.Logger

	mu          sync.RWMutex
	running     bool
	checkpoints map[int]world.Vector3
	state       driveState
	target      int
	held        map[string]bool
}

// BotStats counts what the bot did.
type BotStats struct {
	mu           sync.RWMutex
	KeyEvents    int
	Frames       int
	Checkpoints  int
	Laps         int
	BestLap      float64
	ServerErrors int
	Errors       int
	StartTime    time.Time
}

func NewBot(id, serverURL, pattern string, duration, commandRate time.Duration, logger zerolog.Logger) *Bot {
	return &Bot{
		ID:          id,
		ServerURL:   serverURL,
		Pattern:     pattern,
		Duration:    duration,
		CommandRate: commandRate,
		Stats:       BotStats{StartTime: time.Now()},
		logger:      logging.Component(logger, "Bot").With().Str("bot", id).Logger(),
		checkpoints: make(map[int]world.Vector3),
		held:        make(map[string]bool),
	}
}

// Connect dials the server.
func (b *Bot) Connect() error {
	u, err := url.Parse(b.ServerURL)
	if err != nil {
		return errors.Wrap(err, "invalid url")
	}

	b.logger.Info().Str("url", u.String()).Msg("connecting")
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "dial failed")
	}

	b.mu.Lock()
	b.conn = conn
	b.running = true
	b.mu.Unlock()
	return nil
}

// Disconnect releases every held key and closes the connection.
func (b *Bot) Disconnect() {
	b.mu.Lock()
	conn := b.conn
	wasRunning := b.running
	b.running = false
	b.mu.Unlock()

	if conn == nil || !wasRunning {
		return
	}
	_ = b.applyKeys(map[string]bool{})
	conn.Close()
	b.logger.Info().Msg("disconnected")
}

func (b *Bot) isRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bot) write(v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(v)
}

// applyKeys sends press/release events for keys whose state changes.
func (b *Bot) applyKeys(want map[string]bool) error {
	for _, code := range botKeys {
		b.mu.Lock()
		changed := b.held[code] != want[code]
		b.held[code] = want[code]
		b.mu.Unlock()
		if !changed {
			continue
		}

		if err := b.write(ws.KeyMessage{Type: ws.MessageTypeKey, Code: code, Pressed: want[code]}); err != nil {
			b.Stats.mu.Lock()
			b.Stats.Errors++
			b.Stats.mu.Unlock()
			return errors.Wrapf(err, "sending %s", code)
		}
		b.Stats.mu.Lock()
		b.Stats.KeyEvents++
		b.Stats.mu.Unlock()
	}
	return nil
}

func (b *Bot) snapshot() driveState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := b.state
	if p, ok := b.checkpoints[b.target]; ok {
		st.Target = p
		st.HasTarget = true
	}
	return st
}

// handleMessage updates what the bot knows from one server message.
func (b *Bot) handleMessage(data []byte) error {
	msgType, err := ws.GetMessageType(data)
	if err != nil {
		return err
	}

	switch msgType {
	case ws.MessageTypeInfo:
		var msg ws.InfoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "info")
		}
		b.logger.Info().Str("message", msg.Message).Int("checkpoints", msg.Checkpoints).Msg("server info")

	case ws.MessageTypeCreate:
		var msg ws.CreateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "create")
		}
		if msg.ObjectType == world.KindCheckpoint {
			b.mu.Lock()
			b.checkpoints[msg.Index] = world.Vector3{msg.X, msg.Y, msg.Z}
			b.mu.Unlock()
		}

	case ws.MessageTypeFrame:
		var msg ws.FrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "frame")
		}
		b.mu.Lock()
		if msg.Telemetry.CheckpointIndex != b.target {
			b.Stats.mu.Lock()
			b.Stats.Checkpoints++
			b.Stats.mu.Unlock()
		}
		b.target = msg.Telemetry.CheckpointIndex
		b.state.Position = world.Vector3{msg.Vehicle.X, msg.Vehicle.Y, msg.Vehicle.Z}
		b.state.Heading = msg.Vehicle.Heading
		b.state.Boost = msg.Telemetry.BoostEnergy
		b.mu.Unlock()

		b.Stats.mu.Lock()
		b.Stats.Frames++
		b.Stats.mu.Unlock()

	case ws.MessageTypeLap:
		var msg ws.LapMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "lap")
		}
		b.Stats.mu.Lock()
		b.Stats.Laps = msg.Lap
		b.Stats.BestLap = msg.BestLap
		b.Stats.mu.Unlock()
		b.logger.Info().
			Int("lap", msg.Lap).
			Float64("lap_time", msg.LapTime).
			Bool("new_best", msg.NewBest).
			Msg("lap completed")

	case ws.MessageTypeError:
		var msg ws.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "error")
		}
		b.Stats.mu.Lock()
		b.Stats.ServerErrors++
		b.Stats.mu.Unlock()
		b.logger.Warn().Str("message", msg.Message).Msg("server rejected a message")

	case ws.MessageTypePing:
		var msg ws.PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "ping")
		}
		return b.write(ws.PongMessage{Type: ws.MessageTypePong, ServerTime: msg.ServerTime, ClientTime: time.Now().UnixMilli()})

	case ws.MessageTypePong:
		// latency is not tracked

	default:
		b.logger.Debug().Str("type", msgType).Msg("unknown message type")
	}
	return nil
}

// Run drives until Duration elapses or the connection drops.
func (b *Bot) Run() error {
	if err := b.Connect(); err != nil {
		return err
	}
	defer b.Disconnect()

	go func() {
		for b.isRunning() {
			messageType, data, err := b.conn.ReadMessage()
			if err != nil {
				if b.isRunning() {
					b.logger.Warn().Err(err).Msg("read failed")
					b.Stats.mu.Lock()
					b.Stats.Errors++
					b.Stats.mu.Unlock()
					b.mu.Lock()
					b.running = false
					b.mu.Unlock()
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if err := b.handleMessage(data); err != nil {
				b.logger.Warn().Err(err).Msg("bad message")
			}
		}
	}()

	commandTicker := time.NewTicker(b.CommandRate)
	defer commandTicker.Stop()

	start := time.Now()
	endTime := start.Add(b.Duration)
	for b.isRunning() && time.Now().Before(endTime) {
		<-commandTicker.C
		keys := decide(b.Pattern, b.snapshot(), time.Since(start), rand.Float64)
		if err := b.applyKeys(keys); err != nil {
			b.logger.Warn().Err(err).Msg("sending keys failed")
		}
	}

	b.logger.Info().Msg("finished")
	return nil
}

// PrintStats logs what the bot did.
func (b *Bot) PrintStats() {
	b.Stats.mu.RLock()
	defer b.Stats.mu.RUnlock()

	duration := time.Since(b.Stats.StartTime)
	b.logger.Info().
		Dur("uptime", duration).
		Int("key_events", b.Stats.KeyEvents).
		Int("frames", b.Stats.Frames).
		Int("checkpoints", b.Stats.Checkpoints).
		Int("laps", b.Stats.Laps).
		Float64("best_lap", b.Stats.BestLap).
		Int("server_errors", b.Stats.ServerErrors).
		Int("errors", b.Stats.Errors).
		Msg("bot stats")
}

func main() {
	var (
		serverURL   = flag.String("url", "ws://localhost:8080/ws", "websocket URL of the server")
		botID       = flag.String("id", "bot1", "bot id used in logs")
		pattern     = flag.String("pattern", "chase", "driving pattern (chase, circle, random)")
		duration    = flag.Duration("duration", 60*time.Second, "how long to drive")
		commandRate = flag.Duration("rate", 50*time.Millisecond, "how often to update the held keys")
		logLevel    = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logging.New(os.Stdout, *logLevel, true)
	bot := NewBot(*botID, *serverURL, *pattern, *duration, *commandRate, logger)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		logger.Info().Msg("interrupted")
		bot.Disconnect()
		bot.PrintStats()
		os.Exit(0)
	}()

	if err := bot.Run(); err != nil {
		logger.Error().Err(err).Msg("bot failed")
		os.Exit(1)
	}
	bot.PrintStats()
}
