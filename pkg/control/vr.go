package control

import (
	"math"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// VRMapper reads throttle straight from the left stick and steers toward
// the right stick at a fixed rate.
type VRMapper struct {
	config config.ControlConfig
}

// NewVRMapper creates a VR mapper
func NewVRMapper(cfg config.ControlConfig) *VRMapper {
	return &VRMapper{config: cfg}
}

// SteeringTarget returns where the steering converges for a stick
// deflection x. The curved mapping flattens the response around center.
func (m *VRMapper) SteeringTarget(x float64) float64 {
	if !m.config.CurvedSteering {
		return x
	}
	return math.Tan(x/m.config.CurveDivisor) * m.config.CurveScale
}

// Map implements Mapper
func (m *VRMapper) Map(s *State, in seat.InputSample, speed, dt float64) {
	c := m.config
	s.Throttle = in.LeftStick.Y()
	s.Steering = physics.MoveTowards(s.Steering, m.SteeringTarget(in.RightStick.X()), c.VRSteeringRate*dt)

	switch {
	case s.Direction > 0:
		if s.Throttle > c.NearZero {
			s.Brake = 0
		} else {
			s.Brake = math.Abs(s.Throttle)
			s.Throttle = 0
			if speed < c.DirectionFlipSpeed {
				s.Direction = -s.Direction
			}
		}
	case s.Direction < 0:
		if s.Throttle > c.NearZero {
			s.Brake = math.Abs(s.Throttle)
			s.Throttle = 0
			if speed > -c.DirectionFlipSpeed {
				s.Direction = -s.Direction
			}
		} else {
			s.Throttle = math.Max(s.Throttle, c.ReverseThrottleFloor)
			s.Brake = 0
		}
	}

	s.Handbrake = false
	s.Clamp()
}
