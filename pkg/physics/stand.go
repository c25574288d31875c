// pkg/physics/stand.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const gravity = 9.81

// StandConfig describes the kinematic test stand
type StandConfig struct {
	Mass        float64 // kg
	WheelRadius float64 // m
	WheelBase   float64 // front to rear axle, m
	TrackWidth  float64 // left to right wheel, m
	Grip        float64 // tyre friction coefficient
}

// DefaultStandConfig returns a mid-size car
func DefaultStandConfig() StandConfig {
	return StandConfig{
		Mass:        1200,
		WheelRadius: 0.35,
		WheelBase:   2.6,
		TrackWidth:  1.6,
		Grip:        1.0,
	}
}

// Wheel is a WheelCollider mounted on a Stand
type Wheel struct {
	stand    *Stand
	offset   mgl64.Vec3 // chassis-local: X right, Y up, Z forward
	radius   float64
	rpm      float64
	grounded bool
	hit      GroundHit

	motorTorque float64
	brakeTorque float64
	steerAngle  float64
}

// RPM returns the wheel's rotational speed
func (w *Wheel) RPM() float64 { return w.rpm }

// Radius returns the wheel radius
func (w *Wheel) Radius() float64 { return w.radius }

// GroundHit returns the last computed contact slip
func (w *Wheel) GroundHit() (GroundHit, bool) {
	if !w.grounded {
		return GroundHit{}, false
	}
	return w.hit, true
}

// Position returns the wheel hub position in world space
func (w *Wheel) Position() mgl64.Vec3 {
	return w.stand.localToWorld(w.offset)
}

func (w *Wheel) SetMotorTorque(torque float64) { w.motorTorque = torque }
func (w *Wheel) SetBrakeTorque(torque float64) { w.brakeTorque = torque }
func (w *Wheel) SetSteerAngle(degrees float64) { w.steerAngle = degrees }

func (w *Wheel) MotorTorque() float64 { return w.motorTorque }
func (w *Wheel) BrakeTorque() float64 { return w.brakeTorque }
func (w *Wheel) SteerAngle() float64  { return w.steerAngle }

// SetRPM overrides the wheel speed until the next Step
func (w *Wheel) SetRPM(rpm float64) { w.rpm = rpm }

// SetGroundHit overrides the contact until the next Step. ok=false lifts the
// wheel off the ground.
func (w *Wheel) SetGroundHit(hit GroundHit, ok bool) {
	w.hit = hit
	w.grounded = ok
}

// Stand is a kinematic single-track chassis. It is not a dynamics model:
// torques push the body along its heading, the front steer angle turns it
// with bicycle geometry, and slip is the demanded over the available grip.
type Stand struct {
	config  StandConfig
	wheels  [4]*Wheel
	pos     mgl64.Vec3
	heading float64 // radians, clockwise from +Z seen from above
	vel     mgl64.Vec3
	yawRate float64

	linearDrag  float64
	angularDrag float64
}

// NewStand creates a stand at the origin facing +Z
func NewStand(config StandConfig) *Stand {
	s := &Stand{config: config}
	halfTrack := config.TrackWidth / 2
	halfBase := config.WheelBase / 2
	offsets := [4]mgl64.Vec3{
		FrontLeft:  {-halfTrack, 0, halfBase},
		FrontRight: {halfTrack, 0, halfBase},
		RearLeft:   {-halfTrack, 0, -halfBase},
		RearRight:  {halfTrack, 0, -halfBase},
	}
	for i, off := range offsets {
		s.wheels[i] = &Wheel{
			stand:    s,
			offset:   off,
			radius:   config.WheelRadius,
			grounded: true,
		}
	}
	return s
}

// Wheel returns the wheel at position p
func (s *Stand) Wheel(p WheelPosition) *Wheel {
	return s.wheels[p]
}

// Position returns the chassis origin
func (s *Stand) Position() mgl64.Vec3 { return s.pos }

// Forward returns the chassis heading axis
func (s *Stand) Forward() mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(s.heading), 0, math.Cos(s.heading)}
}

// Right returns the chassis lateral axis
func (s *Stand) Right() mgl64.Vec3 {
	return mgl64.Vec3{math.Cos(s.heading), 0, -math.Sin(s.heading)}
}

func (s *Stand) Velocity() mgl64.Vec3        { return s.vel }
func (s *Stand) SetVelocity(v mgl64.Vec3)    { s.vel = v }
func (s *Stand) AngularVelocity() mgl64.Vec3 { return mgl64.Vec3{0, s.yawRate, 0} }

func (s *Stand) SetAngularVelocity(w mgl64.Vec3) { s.yawRate = w.Y() }

// SetDrag sets the linear and angular damping coefficients
func (s *Stand) SetDrag(linear, angular float64) {
	s.linearDrag = linear
	s.angularDrag = angular
}

// Drag returns the linear and angular damping coefficients
func (s *Stand) Drag() (linear, angular float64) {
	return s.linearDrag, s.angularDrag
}

// SetPose places the chassis, as a transform replica would on an observer
func (s *Stand) SetPose(pos mgl64.Vec3, heading float64) {
	s.pos = pos
	s.heading = heading
}

// Heading returns the chassis yaw in radians
func (s *Stand) Heading() float64 { return s.heading }

func (s *Stand) localToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return s.pos.
		Add(s.Right().Mul(local.X())).
		Add(mgl64.Vec3{0, local.Y(), 0}).
		Add(s.Forward().Mul(local.Z()))
}

// Step integrates the stand over dt seconds from the torques currently set
// on the wheels.
func (s *Stand) Step(dt float64) {
	if dt <= 0 {
		return
	}
	forward := s.Forward()
	speed := s.vel.Dot(forward)
	maxAccel := s.config.Grip * gravity

	var drive, brake float64
	for _, w := range s.wheels {
		if !w.grounded {
			continue
		}
		drive += w.motorTorque / w.radius
		brake += math.Abs(w.brakeTorque) / w.radius
	}

	demanded := drive / s.config.Mass
	accel := Clamp(demanded, -maxAccel, maxAccel)
	speed += accel * dt

	brakeDelta := math.Min(brake/s.config.Mass, maxAccel) * dt
	speed = MoveTowards(speed, 0, brakeDelta)
	speed /= 1 + s.linearDrag*dt

	steer := (s.wheels[FrontLeft].steerAngle + s.wheels[FrontRight].steerAngle) / 2 * Deg2Rad
	s.yawRate = 0
	if s.config.WheelBase > 0 {
		s.yawRate = speed * math.Tan(steer) / s.config.WheelBase
	}
	s.yawRate /= 1 + s.angularDrag*dt
	s.heading += s.yawRate * dt

	s.vel = s.Forward().Mul(speed)
	s.pos = s.pos.Add(s.vel.Mul(dt))

	forwardSlip := 0.0
	if maxAccel > 0 {
		forwardSlip = demanded / maxAccel
	}
	lateralSlip := 0.0
	if maxAccel > 0 {
		lateralSlip = speed * s.yawRate / maxAccel
	}

	wheelRPM := 0.0
	if s.config.WheelRadius > 0 {
		wheelRPM = speed / (2 * math.Pi * s.config.WheelRadius) * 60
	}
	for i, w := range s.wheels {
		w.rpm = wheelRPM
		w.grounded = true
		w.hit = GroundHit{LateralSlip: lateralSlip}
		if WheelPosition(i) == RearLeft || WheelPosition(i) == RearRight {
			w.hit.ForwardSlip = forwardSlip
		}
	}
}
