package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/logging"
)

// Measurement is the InfluxDB measurement name of vehicle samples
const Measurement = "vehicle"

type pointWriter interface {
	WritePoint(point *influxdb2_write.Point)
	Flush()
}

// InfluxSink writes samples to InfluxDB through the non-blocking write API,
// or as line protocol to a backup writer when no server is reachable.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	logger *logging.Logger

	mu     sync.Mutex
	backup io.Writer
}

// NewInfluxSink connects to the server in cfg. Write errors are reported
// asynchronously through logger.
func NewInfluxSink(ctx context.Context, cfg config.InfluxConfig, logger *logging.Logger) (*InfluxSink, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, logging.WrapError(err, "failed to reach influxdb at %s", cfg.URL)
	}

	w := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			logger.Error(context.Background(), "Error sending telemetry to InfluxDB", writeErr,
				"bucket", cfg.Bucket)
		}
	}(w.Errors())

	logger.Info(ctx, "InfluxDB telemetry sink initialized", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return &InfluxSink{client: client, writer: w, logger: logger}, nil
}

// NewLineProtocolSink writes samples as line protocol to w, one per line.
// Wrap w in a gzip.Writer for a compressed backup file.
func NewLineProtocolSink(w io.Writer, logger *logging.Logger) *InfluxSink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &InfluxSink{backup: w, logger: logger}
}

// Point converts a sample into an InfluxDB point
func Point(s Sample) *influxdb2_write.Point {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("vehicle", s.Vehicle).
		AddTag("mode", s.Mode).
		AddTag("gear", s.GearLabel).
		AddField("rpm", s.RPM).
		AddField("speed", s.Speed).
		AddField("speed_smoothed", s.SmoothedSpeed).
		AddField("throttle", s.Throttle).
		AddField("steering", s.Steering).
		AddField("brake", s.Brake).
		AddField("direction", s.Direction).
		AddField("slipping", s.Slipping).
		AddField("local_control", s.LocalControl).
		SetTime(ts)
}

// Record implements Sink
func (i *InfluxSink) Record(ctx context.Context, s Sample) {
	point := Point(s)
	if i.writer != nil {
		i.writer.WritePoint(point)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.backup == nil {
		return
	}
	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := io.WriteString(i.backup, line+"\n"); err != nil {
		i.logger.Warn(ctx, "Error writing telemetry backup line", "error", err.Error())
	}
}

// Close flushes pending points and releases the client
func (i *InfluxSink) Close() error {
	if i.writer != nil {
		i.writer.Flush()
	}
	if i.client != nil {
		i.client.Close()
	}
	if c, ok := i.backup.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close telemetry backup: %w", err)
		}
	}
	return nil
}
