// Package control maps raw driver input into the vehicle control state.
// Two mappers exist, one per input device class; exactly one of them, or
// the replication decoder, writes the state on a given frame.
package control

import (
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// State is the driver's control state
type State struct {
	Throttle  float64 // [-1, 1]
	Steering  float64 // [-1, 1], positive steers right
	Brake     float64 // [0, 1]
	Direction int     // -1 reverse, +1 forward, 0 before the first driven frame
	Handbrake bool
}

// Clamp forces every field into its range
func (s *State) Clamp() {
	s.Throttle = physics.Clamp(s.Throttle, -1, 1)
	s.Steering = physics.Clamp(s.Steering, -1, 1)
	s.Brake = physics.Clamp01(s.Brake)
	switch {
	case s.Direction > 1:
		s.Direction = 1
	case s.Direction < -1:
		s.Direction = -1
	}
}

// Mapper turns one frame of input into control state. speed is the
// smoothed speed estimate and dt the frame time in seconds.
type Mapper interface {
	Map(state *State, in seat.InputSample, speed, dt float64)
}

// Select returns the mapper for the device class of in
func Select(in seat.InputSample, desktop, vr Mapper) Mapper {
	if in.Device == seat.DeviceVR {
		return vr
	}
	return desktop
}

// NewMappers creates the desktop and VR mappers from one configuration
func NewMappers(cfg config.ControlConfig) (*DesktopMapper, *VRMapper) {
	return NewDesktopMapper(cfg), NewVRMapper(cfg)
}
