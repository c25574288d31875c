package control

import (
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// DesktopMapper ramps throttle and steering from digital keys. Holding the
// opposite key while slow enough changes the direction of travel.
type DesktopMapper struct {
	config config.ControlConfig
}

// NewDesktopMapper creates a desktop mapper
func NewDesktopMapper(cfg config.ControlConfig) *DesktopMapper {
	return &DesktopMapper{config: cfg}
}

// Map implements Mapper
func (m *DesktopMapper) Map(s *State, in seat.InputSample, speed, dt float64) {
	c := m.config
	step := c.ThrottleStep
	axis := in.Move

	switch {
	case axis.Y() > c.AxisThreshold:
		s.Throttle = physics.Clamp(s.Throttle+step, -1, 1)
		if s.Direction > 0 {
			if s.Throttle > 0 {
				s.Brake = 0
			}
		} else {
			if s.Throttle > 0 {
				s.Brake += step
			}
			s.Brake = physics.Clamp01(s.Brake)
			if speed < c.NearZero {
				s.Throttle = 0
				s.Direction = -s.Direction
			}
		}
	case axis.Y() < -c.AxisThreshold:
		if s.Direction > 0 {
			s.Throttle -= 2 * step
			if s.Throttle < 0 {
				s.Brake += step
			}
			s.Throttle = physics.Clamp(s.Throttle, -1, 1)
			s.Brake = physics.Clamp01(s.Brake)
			if speed < c.DirectionFlipSpeed {
				s.Throttle = 0
				s.Direction = -s.Direction
			}
		} else {
			s.Throttle -= step
			if s.Throttle < 0 {
				s.Brake = 0
			}
			s.Throttle = physics.Clamp(s.Throttle, c.ReverseThrottleFloor, 1)
		}
	default:
		s.Throttle = physics.MoveTowards(s.Throttle, 0, step)
	}

	switch {
	case axis.X() > c.AxisThreshold:
		s.Steering += c.SteeringStep
	case axis.X() < -c.AxisThreshold:
		s.Steering -= c.SteeringStep
	default:
		s.Steering = physics.MoveTowards(s.Steering, 0, c.SteeringStep/c.SteeringRelaxDivisor)
	}

	s.Handbrake = in.Jump
	s.Clamp()
}
