// Package physics defines the collider and rigid-body surfaces the vehicle
// drives, plus a kinematic test stand that implements them without a
// physics engine.
package physics

import "github.com/go-gl/mathgl/mgl64"

// WheelPosition identifies one of the four wheels
type WheelPosition int

const (
	FrontLeft WheelPosition = iota
	FrontRight
	RearLeft
	RearRight
)

// WheelPositions lists every wheel in a fixed order
var WheelPositions = [4]WheelPosition{FrontLeft, FrontRight, RearLeft, RearRight}

func (p WheelPosition) String() string {
	switch p {
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case RearLeft:
		return "rear_left"
	case RearRight:
		return "rear_right"
	default:
		return "unknown"
	}
}

// GroundHit is the contact information of a grounded wheel
type GroundHit struct {
	ForwardSlip float64
	LateralSlip float64
}

// WheelCollider is the per-wheel physics surface. RPM, Radius and GroundHit
// are read; torques and steer angle are written once per fixed step.
type WheelCollider interface {
	RPM() float64
	Radius() float64
	// GroundHit reports the contact slip; ok is false when airborne.
	GroundHit() (hit GroundHit, ok bool)
	Position() mgl64.Vec3

	SetMotorTorque(torque float64)
	SetBrakeTorque(torque float64)
	SetSteerAngle(degrees float64)
}

// Body is the chassis rigid body
type Body interface {
	Position() mgl64.Vec3
	// Right is the chassis lateral axis in world space.
	Right() mgl64.Vec3

	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(w mgl64.Vec3)
	SetDrag(linear, angular float64)
}
