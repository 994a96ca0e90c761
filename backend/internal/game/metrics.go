package game

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the simulation metrics.
const MeterName = "x-drive/backend/internal/game"

// Instruments are the OpenTelemetry instruments updated by the tick loop.
// Without an SDK installed they are no-ops.
type Instruments struct {
	frames       metric.Int64Counter
	checkpoints  metric.Int64Counter
	laps         metric.Int64Counter
	skippedTicks metric.Int64Counter
	tickDuration metric.Float64Histogram
	systemErrors metric.Int64Counter
}

// NewInstruments creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	var (
		in  Instruments
		err error
	)
	if in.frames, err = meter.Int64Counter("xdrive.frames",
		metric.WithDescription("Simulated frames")); err != nil {
		return nil, errors.Wrap(err, "frames counter")
	}
	if in.checkpoints, err = meter.Int64Counter("xdrive.checkpoints",
		metric.WithDescription("Checkpoint crossings")); err != nil {
		return nil, errors.Wrap(err, "checkpoints counter")
	}
	if in.laps, err = meter.Int64Counter("xdrive.laps",
		metric.WithDescription("Completed laps")); err != nil {
		return nil, errors.Wrap(err, "laps counter")
	}
	if in.skippedTicks, err = meter.Int64Counter("xdrive.ticks.late",
		metric.WithDescription("Ticks that arrived more than two periods late")); err != nil {
		return nil, errors.Wrap(err, "late ticks counter")
	}
	if in.tickDuration, err = meter.Float64Histogram("xdrive.tick.duration",
		metric.WithDescription("Wall time spent running all systems of a tick"),
		metric.WithUnit("ms")); err != nil {
		return nil, errors.Wrap(err, "tick duration histogram")
	}
	if in.systemErrors, err = meter.Int64Counter("xdrive.system.errors",
		metric.WithDescription("Errors and panics raised by tick systems")); err != nil {
		return nil, errors.Wrap(err, "system errors counter")
	}
	return &in, nil
}

func (in *Instruments) recordFrame(ctx context.Context, f Frame) {
	if in == nil {
		return
	}
	in.frames.Add(ctx, 1)
	if f.Event.CheckpointHit {
		in.checkpoints.Add(ctx, 1, metric.WithAttributes(attribute.Int("checkpoint", f.Event.Checkpoint)))
	}
	if f.Event.LapCompleted {
		in.laps.Add(ctx, 1, metric.WithAttributes(attribute.Bool("new_best", f.Event.NewBest)))
	}
}

func (in *Instruments) recordTick(ctx context.Context, d time.Duration, late bool) {
	if in == nil {
		return
	}
	in.tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
	if late {
		in.skippedTicks.Add(ctx, 1)
	}
}

func (in *Instruments) recordSystemError(ctx context.Context, system string) {
	if in == nil {
		return
	}
	in.systemErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("system", system)))
}
