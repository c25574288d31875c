package telemetry

import (
	"context"

	"github.com/opd-ai/go-vehicle/pkg/logging"
)

// LogSink writes each sample as a Debug line, the textual equivalent of the
// in-cabin debug readout.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log sink. A nil logger discards.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink
func (l *LogSink) Record(ctx context.Context, s Sample) {
	l.logger.Debug(ctx, "vehicle telemetry",
		"vehicle", s.Vehicle,
		"engine_rpm", s.RPM,
		"engine_mode", s.Mode,
		"gear", s.Gear,
		"gear_label", s.GearLabel,
		"throttle", s.Throttle,
		"brake", s.Brake,
		"direction", s.Direction,
		"speed", s.Speed,
		"speed_smoothed", s.SmoothedSpeed,
		"slipping", s.Slipping,
		"local_control", s.LocalControl,
	)
}
