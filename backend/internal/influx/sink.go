// Package influx exports simulated frames to InfluxDB.
package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/game"
)

// Measurement is the name of the per-frame point.
const Measurement = "vehicle_telemetry"

// Config locates the target bucket.
type Config struct {
	URL       string
	Token     string
	Org       string
	Bucket    string
	SessionID string
}

// PointWriter is the non-blocking write API of the client.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point)
	Flush()
}

// Sink writes one point per frame. Write failures are logged and never
// reach the simulation.
type Sink struct {
	client    influxdb2.Client
	writer    PointWriter
	sessionID string
	logger    zerolog.Logger
	written   uint64
}

// NewSink connects to InfluxDB. An unreachable server is only a warning:
// the client buffers and retries on its own.
func NewSink(ctx context.Context, cfg Config, logger zerolog.Logger) (*Sink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx url, org and bucket are required")
	}
	logger = logger.With().Str("component", "InfluxSink").Logger()

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := client.Ping(ctx)
	if err != nil || !running {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("InfluxDB is not reachable, points will be retried")
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			logger.Error().Err(writeErr).Str("bucket", cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(writeAPI.Errors())

	s := newSink(writeAPI, cfg.SessionID, logger)
	s.client = client
	logger.Info().Str("bucket", cfg.Bucket).Msg("InfluxDB sink initialized")
	return s, nil
}

func newSink(writer PointWriter, sessionID string, logger zerolog.Logger) *Sink {
	return &Sink{writer: writer, sessionID: sessionID, logger: logger}
}

// FramePoint converts a frame into a point tagged with the session.
func FramePoint(sessionID string, f game.Frame, ts time.Time) *influxdb2_write.Point {
	tel := f.Telemetry
	fields := map[string]interface{}{
		"tick":       int64(f.Tick),
		"speed":      tel.Speed,
		"gear":       tel.Gear,
		"distance":   tel.Distance,
		"drift":      tel.Drift,
		"boost":      tel.BoostEnergy,
		"lap_time":   tel.LapTime,
		"checkpoint": tel.CheckpointIndex,
		"lap":        tel.Lap,
		"x":          f.Vehicle.Position.X(),
		"z":          f.Vehicle.Position.Z(),
		"heading":    f.Vehicle.Heading,
	}
	if tel.BestLap != nil {
		fields["best_lap"] = *tel.BestLap
	}
	if f.Event.LapCompleted {
		fields["completed_lap_time"] = f.Event.LapTime
	}

	return influxdb2_write.NewPoint(Measurement,
		map[string]string{
			"session": sessionID,
			"status":  string(tel.Status),
		},
		fields, ts)
}

// Write queues the point of f.
func (s *Sink) Write(f game.Frame) {
	s.writer.WritePoint(FramePoint(s.sessionID, f, time.Now()))
	s.written++
}

// Run writes every frame received until ctx is done or frames is closed.
func (s *Sink) Run(ctx context.Context, frames <-chan game.Frame) {
	defer s.writer.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.Write(f)
		}
	}
}

// Written returns the number of points queued so far.
func (s *Sink) Written() uint64 {
	return s.written
}

// Close flushes pending points and releases the client.
func (s *Sink) Close() {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
	s.logger.Info().Uint64("points", s.written).Msg("InfluxDB sink closed")
}
