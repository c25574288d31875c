// Package steering converts the normalized steering input into front wheel
// steer angles.
package steering

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
)

// Geometry holds the front axle constants. It is computed once from the
// wheel hub positions and never changes afterwards.
type Geometry struct {
	WheelBase     float64
	TrackWidth    float64
	TurningRadius float64

	maxSteer  float64
	ackermann bool
}

// NewGeometry measures the chassis from its wheel hubs. The wheel base is
// taken from rear-left to front-right, the diagonal, which is what the
// tuned turning radius was calibrated against.
func NewGeometry(rearLeft, frontLeft, frontRight mgl64.Vec3, cfg config.SteeringConfig) Geometry {
	wheelBase := rearLeft.Sub(frontRight).Len()
	track := frontLeft.Sub(frontRight).Len()
	beta := (180 - (cfg.MaxSteerAngle + 90)) * physics.Deg2Rad

	return Geometry{
		WheelBase:     wheelBase,
		TrackWidth:    track,
		TurningRadius: math.Abs(math.Tan(beta)*wheelBase) + track/2,
		maxSteer:      cfg.MaxSteerAngle,
		ackermann:     cfg.UseAckermann,
	}
}

// Angles returns the left and right steer angles in degrees for a steering
// input in [-1, 1]. Positive steers right, so the right wheel is the inner
// one and turns further.
func (g Geometry) Angles(steering float64) (left, right float64) {
	s := physics.Clamp(steering, -1, 1)
	if !g.ackermann {
		return s * g.maxSteer, s * g.maxSteer
	}

	halfTrack := g.TrackWidth / 2
	outer := physics.Rad2Deg * math.Atan(g.WheelBase/(g.TurningRadius+halfTrack)) * s / 2
	inner := physics.Rad2Deg * math.Atan(g.WheelBase/(g.TurningRadius-halfTrack)) * s / 2
	switch {
	case s > 0:
		return outer, inner
	case s < 0:
		return inner, outer
	default:
		return 0, 0
	}
}

// Apply writes the steer angles for steering to the two front wheels
func (g Geometry) Apply(steering float64, frontLeft, frontRight physics.WheelCollider) {
	left, right := g.Angles(steering)
	frontLeft.SetSteerAngle(left)
	frontRight.SetSteerAngle(right)
}

// MaxSteerAngle returns the configured full-lock angle in degrees
func (g Geometry) MaxSteerAngle() float64 {
	return g.maxSteer
}
