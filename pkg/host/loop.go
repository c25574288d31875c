// Package host schedules the two simulation cadences: a variable step once
// per rendered frame and a fixed physics step driven from an accumulator.
package host

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/logging"
)

// Stepper is anything the loop advances
type Stepper interface {
	OnVariableStep(dt float64)
	OnFixedStep(dt float64)
}

// PhysicsFunc integrates the world after every fixed step
type PhysicsFunc func(dt float64)

// Stats counts the work done by a Loop
type Stats struct {
	Frames     uint64
	FixedSteps uint64
	Dropped    time.Duration // simulated time discarded by the step cap
}

// Loop is a fixed-step accumulator. It is not safe for concurrent use; all
// steppers run on the goroutine that calls Frame.
type Loop struct {
	fixedStep     time.Duration
	maxSteps      int
	frameInterval time.Duration
	accumulator   time.Duration
	steppers      []Stepper
	physics       PhysicsFunc
	stats         Stats
	progress      atomic.Uint64
	logger        *logging.Logger
}

// NewLoop creates a loop with the cadence from cfg
func NewLoop(cfg config.HostConfig, logger *logging.Logger, steppers ...Stepper) *Loop {
	if logger == nil {
		logger = logging.Discard()
	}
	maxSteps := cfg.MaxFixedStepsPerFrame
	if maxSteps < 1 {
		maxSteps = 1
	}
	frameInterval := time.Second / 60
	if cfg.FrameRate > 0 {
		frameInterval = time.Second / time.Duration(cfg.FrameRate)
	}
	return &Loop{
		fixedStep:     cfg.FixedStep,
		maxSteps:      maxSteps,
		frameInterval: frameInterval,
		steppers:      steppers,
		logger:        logger,
	}
}

// Add appends a stepper; it is advanced after the ones already registered
func (l *Loop) Add(s Stepper) {
	l.steppers = append(l.steppers, s)
}

// SetPhysics sets the world integrator run after each fixed step
func (l *Loop) SetPhysics(fn PhysicsFunc) {
	l.physics = fn
}

// FixedStep returns the physics period
func (l *Loop) FixedStep() time.Duration { return l.fixedStep }

// FrameInterval returns the target frame period used by Run
func (l *Loop) FrameInterval() time.Duration { return l.frameInterval }

// Stats returns the counters accumulated so far
func (l *Loop) Stats() Stats { return l.stats }

// Progress returns the number of frames run so far. Unlike Stats it may be
// called from any goroutine.
func (l *Loop) Progress() uint64 { return l.progress.Load() }

// Frame advances one rendered frame of length dt and returns the number of
// fixed steps it ran. Negative frame times are treated as zero.
func (l *Loop) Frame(dt time.Duration) int {
	if dt < 0 {
		dt = 0
	}
	l.stats.Frames++
	l.progress.Add(1)

	frameDt := dt.Seconds()
	for _, s := range l.steppers {
		s.OnVariableStep(frameDt)
	}

	if l.fixedStep <= 0 {
		return 0
	}

	l.accumulator += dt
	fixedDt := l.fixedStep.Seconds()
	steps := 0
	for l.accumulator >= l.fixedStep && steps < l.maxSteps {
		for _, s := range l.steppers {
			s.OnFixedStep(fixedDt)
		}
		if l.physics != nil {
			l.physics(fixedDt)
		}
		l.accumulator -= l.fixedStep
		steps++
	}
	l.stats.FixedSteps += uint64(steps)

	if l.accumulator >= l.fixedStep {
		dropped := l.accumulator - l.accumulator%l.fixedStep
		l.accumulator -= dropped
		l.stats.Dropped += dropped
		l.logger.Debug(context.Background(), "fixed step budget exceeded",
			"steps", steps,
			"dropped", dropped,
		)
	}
	return steps
}

// Run drives Frame from a wall-clock ticker at the configured frame rate
// until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Frame(now.Sub(last))
			last = now
		}
	}
}
