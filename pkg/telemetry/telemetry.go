// Package telemetry carries the vehicle's numeric feed to observability
// backends. Sinks are pure consumers: nothing they do feeds back into the
// simulation.
package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// Sample is one frame of the vehicle feed
type Sample struct {
	Vehicle   string
	At        time.Duration // simulation clock
	Timestamp time.Time     // wall clock

	RPM           float64
	Mode          string
	Gear          int
	GearLabel     string
	Speed         float64
	SmoothedSpeed float64
	Slipping      bool
	LocalControl  bool

	Throttle  float64
	Steering  float64
	Brake     float64
	Direction int

	SteeringWheelAngle float64
	SpeedDialAngle     float64
	RPMDialAngle       float64
}

// Sink receives samples
type Sink interface {
	Record(ctx context.Context, s Sample)
}

// Multi fans a sample out to several sinks. Nil entries are skipped.
type Multi []Sink

// Record implements Sink
func (m Multi) Record(ctx context.Context, s Sample) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, s)
		}
	}
}

// Close closes every sink that implements io.Closer and joins the errors
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Throttled forwards at most one sample per Interval of simulation time.
// The first sample always passes.
type Throttled struct {
	Sink     Sink
	Interval time.Duration

	mu   sync.Mutex
	last time.Duration
	sent bool
}

// NewThrottled wraps sink
func NewThrottled(sink Sink, interval time.Duration) *Throttled {
	return &Throttled{Sink: sink, Interval: interval}
}

// Record implements Sink
func (t *Throttled) Record(ctx context.Context, s Sample) {
	t.mu.Lock()
	if t.sent && s.At-t.last < t.Interval {
		t.mu.Unlock()
		return
	}
	t.sent = true
	t.last = s.At
	t.mu.Unlock()

	t.Sink.Record(ctx, s)
}

// Close closes the wrapped sink if it is an io.Closer
func (t *Throttled) Close() error {
	if c, ok := t.Sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
