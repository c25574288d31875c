package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-vehicle/pkg/telemetry"

// OTelSink records samples as OpenTelemetry gauges
type OTelSink struct {
	rpm      metric.Float64Gauge
	speed    metric.Float64Gauge
	smoothed metric.Float64Gauge
	throttle metric.Float64Gauge
	gear     metric.Int64Gauge
	slips    metric.Int64Counter

	slipping map[string]bool
}

// NewOTelSink creates the instruments on meter. A nil meter uses the global
// provider, which is a no-op until one is installed.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	s := &OTelSink{slipping: make(map[string]bool)}

	var err error
	s.rpm, err = meter.Float64Gauge("vehicle.engine.rpm",
		metric.WithDescription("Engine speed"),
		metric.WithUnit("{rpm}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rpm gauge: %w", err)
	}

	s.speed, err = meter.Float64Gauge("vehicle.speed",
		metric.WithDescription("Instantaneous speed estimate"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating speed gauge: %w", err)
	}

	s.smoothed, err = meter.Float64Gauge("vehicle.speed.smoothed",
		metric.WithDescription("Moving average of the speed estimate"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating smoothed speed gauge: %w", err)
	}

	s.throttle, err = meter.Float64Gauge("vehicle.control.throttle",
		metric.WithDescription("Driver throttle in [-1, 1]"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating throttle gauge: %w", err)
	}

	s.gear, err = meter.Int64Gauge("vehicle.gear",
		metric.WithDescription("Current gearbox index"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gear gauge: %w", err)
	}

	s.slips, err = meter.Int64Counter("vehicle.slip.starts",
		metric.WithDescription("Number of times the vehicle started slipping"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating slip counter: %w", err)
	}

	return s, nil
}

// Record implements Sink. Samples are recorded from the single simulation
// goroutine.
func (o *OTelSink) Record(ctx context.Context, s Sample) {
	attrs := metric.WithAttributes(
		attribute.String("vehicle", s.Vehicle),
		attribute.String("engine.mode", s.Mode),
	)
	o.rpm.Record(ctx, s.RPM, attrs)
	o.speed.Record(ctx, s.Speed, attrs)
	o.smoothed.Record(ctx, s.SmoothedSpeed, attrs)
	o.throttle.Record(ctx, s.Throttle, attrs)
	o.gear.Record(ctx, int64(s.Gear), attrs)

	if s.Slipping && !o.slipping[s.Vehicle] {
		o.slips.Add(ctx, 1, metric.WithAttributes(attribute.String("vehicle", s.Vehicle)))
	}
	o.slipping[s.Vehicle] = s.Slipping
}
