package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type recordingSink struct {
	samples []Sample
	closed  bool
	err     error
}

func (r *recordingSink) Record(ctx context.Context, s Sample) { r.samples = append(r.samples, s) }

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func testSample(at time.Duration) Sample {
	return Sample{
		Vehicle:       "car",
		At:            at,
		Timestamp:     time.Unix(1700000000, 0),
		RPM:           2400,
		Mode:          "acceleration",
		Gear:          3,
		GearLabel:     "D2",
		Speed:         12.5,
		SmoothedSpeed: 12,
		Throttle:      0.7,
		Direction:     1,
		LocalControl:  true,
	}
}

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi{a, nil, b}

	m.Record(context.Background(), testSample(0))

	assert.Len(t, a.samples, 1)
	assert.Len(t, b.samples, 1)
}

func TestMulti_CloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingSink{err: boom}, &recordingSink{}

	err := Multi{a, b}.Close()

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestThrottled_Interval(t *testing.T) {
	inner := &recordingSink{}
	th := NewThrottled(inner, 250*time.Millisecond)
	ctx := context.Background()

	for _, at := range []time.Duration{0, 100, 249, 250, 400, 500, 1000} {
		th.Record(ctx, testSample(at*time.Millisecond))
	}

	var got []time.Duration
	for _, s := range inner.samples {
		got = append(got, s.At)
	}
	assert.Equal(t, []time.Duration{0, 250 * time.Millisecond, 500 * time.Millisecond, 1000 * time.Millisecond}, got)

	require.NoError(t, th.Close())
	assert.True(t, inner.closed)
}

func TestLogSink_WritesDebugLine(t *testing.T) {
	t.Setenv(logging.LevelEnvVar, "DEBUG")
	var buf bytes.Buffer
	sink := NewLogSink(logging.NewLoggerWithWriter(&buf))

	sink.Record(logging.WithSessionID(context.Background(), "abc"), testSample(0))

	out := buf.String()
	assert.Contains(t, out, `"msg":"vehicle telemetry"`)
	assert.Contains(t, out, `"gear_label":"D2"`)
	assert.Contains(t, out, `"session_id":"abc"`)
}

func TestLogSink_NilLogger(t *testing.T) {
	NewLogSink(nil).Record(context.Background(), testSample(0))
}

func TestOTelSink_Records(t *testing.T) {
	sink, err := NewOTelSink(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	s := testSample(0)
	sink.Record(context.Background(), s)
	s.Slipping = true
	sink.Record(context.Background(), s)
	sink.Record(context.Background(), s)

	assert.True(t, sink.slipping["car"])
}

func TestOTelSink_GlobalMeter(t *testing.T) {
	sink, err := NewOTelSink(nil)
	require.NoError(t, err)
	sink.Record(context.Background(), testSample(0))
}

func TestPoint(t *testing.T) {
	p := Point(testSample(0))

	assert.Equal(t, Measurement, p.Name())
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"vehicle": "car", "mode": "acceleration", "gear": "D2"}, tags)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 2400.0, fields["rpm"])
	assert.Equal(t, true, fields["local_control"])
	assert.Equal(t, time.Unix(1700000000, 0), p.Time())
}

func TestLineProtocolSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLineProtocolSink(&buf, nil)

	sink.Record(context.Background(), testSample(0))
	sink.Record(context.Background(), testSample(time.Second))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "vehicle,"), "line %q should start with the measurement", lines[0])
	assert.Contains(t, lines[0], "gear=D2")
	assert.Contains(t, lines[0], "rpm=2400")
	assert.True(t, strings.HasSuffix(lines[0], " 1700000000000000000"), "line %q should end with a ns timestamp", lines[0])
}

func TestNewInfluxSink_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := testInfluxConfig()
	cfg.URL = "http://127.0.0.1:1"
	_, err := NewInfluxSink(ctx, cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach influxdb")
}
