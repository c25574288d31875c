// Package engine holds the engine state machine and its torque curve. The
// model never touches colliders: the vehicle passes the wheel-derived rpm
// in on every tick.
package engine

import (
	"math"
	"time"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
)

// Mode is the engine state
type Mode int

const (
	Off Mode = iota
	Startup
	Idle
	Acceleration
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Startup:
		return "startup"
	case Idle:
		return "idle"
	case Acceleration:
		return "acceleration"
	default:
		return "unknown"
	}
}

// State is a snapshot of the engine
type State struct {
	RPM       float64
	Mode      Mode
	StartedAt time.Duration
}

// Running reports whether the engine turns over (Idle or Acceleration)
func (s State) Running() bool {
	return s.Mode == Idle || s.Mode == Acceleration
}

// Tick carries the inputs of one fixed step
type Tick struct {
	Now                time.Duration // host clock
	Throttle           float64
	WheelEquivalentRPM float64
}

// Model is the engine state machine: Off -> Startup -> Idle <-> Acceleration,
// and any state -> Off.
type Model struct {
	config config.EngineConfig
	state  State
}

// NewModel creates an engine in the Off state
func NewModel(cfg config.EngineConfig) *Model {
	return &Model{config: cfg}
}

// State returns the current engine snapshot
func (m *Model) State() State {
	return m.state
}

// Start cranks the engine at now. It is valid from any state and restarts
// the startup timer.
func (m *Model) Start(now time.Duration) State {
	m.state = State{Mode: Startup, StartedAt: now}
	return m.state
}

// Stop switches the engine off
func (m *Model) Stop() State {
	m.state.Mode = Off
	m.state.RPM = 0
	return m.state
}

// Idle puts a running engine straight into Idle at idle rpm, skipping the
// startup delay.
func (m *Model) Idle(now time.Duration) State {
	m.state = State{Mode: Idle, RPM: m.config.IdleRPM, StartedAt: now}
	return m.state
}

// Advance runs one fixed step of the state machine.
func (m *Model) Advance(t Tick) State {
	switch m.state.Mode {
	case Off:
		m.state.RPM = 0
		return m.state
	case Startup:
		m.state.RPM = 0
		if t.Now-m.state.StartedAt > m.config.StartupDuration {
			m.state.Mode = Idle
			m.state.RPM = m.config.IdleRPM
		}
		return m.state
	}

	throttle := math.Abs(t.Throttle)
	if throttle > m.config.AccelerationThreshold {
		m.state.Mode = Acceleration
	} else {
		m.state.Mode = Idle
	}

	target := t.WheelEquivalentRPM + physics.Lerp(0, m.config.MaxRPM/m.config.ThrottleRPMDivisor, throttle)
	rpm := physics.MoveTowards(m.state.RPM, target, m.config.RPMSlewPerTick)
	m.state.RPM = physics.Clamp(rpm, m.config.IdleRPM, m.config.MaxRPM)
	return m.state
}

// Torque returns the torque fraction available at the current rpm
func (m *Model) Torque() float64 {
	return TorqueCurve(m.state.RPM, m.config.MaxRPM)
}

// RPMFraction returns rpm as a fraction of max rpm
func (m *Model) RPMFraction() float64 {
	return physics.InverseLerp(0, m.config.MaxRPM, m.state.RPM)
}
