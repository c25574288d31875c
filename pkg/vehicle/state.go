package vehicle

import (
	"math"
	"time"

	"github.com/opd-ai/go-vehicle/pkg/control"
	"github.com/opd-ai/go-vehicle/pkg/engine"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/seat"
	"github.com/opd-ai/go-vehicle/pkg/telemetry"
	"github.com/opd-ai/go-vehicle/pkg/wheel"
)

// Dials are the cockpit gauge rotations in degrees
type Dials struct {
	SteeringWheel float64
	Speed         float64
	RPM           float64
}

func computeDials(steering, smoothedSpeed, rpm, maxSteer, maxRPM float64) Dials {
	return Dials{
		SteeringWheel: -steering * maxSteer * 4,
		// mph gauge face
		Speed: physics.LerpUnclamped(-42, 71, math.Abs(smoothedSpeed/100)*2.23694),
		RPM:   physics.Lerp(-135, 135, physics.InverseLerp(0, maxRPM, rpm)),
	}
}

// Name returns the configured vehicle name
func (v *Vehicle) Name() string { return v.name }

// Control returns the current control state
func (v *Vehicle) Control() control.State { return v.control }

// Engine returns the engine snapshot
func (v *Vehicle) Engine() engine.State { return v.engine.State() }

// Gear returns the gearbox index and indicator label
func (v *Vehicle) Gear() (int, string) {
	return v.gearbox.Index(), v.gearbox.Label(v.control.Direction)
}

// Speed returns the instantaneous and smoothed speed estimates
func (v *Vehicle) Speed() (instant, smoothed float64) { return v.speed, v.speedSMA }

// LocallyDriven reports whether this peer has authority this frame
func (v *Vehicle) LocallyDriven() bool { return v.locallyDriven }

// Driver returns the current occupant as seen by the vehicle
func (v *Vehicle) Driver() (*seat.Player, bool) { return v.driver, v.driver != nil }

// Now returns the simulation clock advanced by fixed steps
func (v *Vehicle) Now() time.Duration { return v.now }

// Dials returns the gauge rotations of the last frame
func (v *Vehicle) Dials() Dials { return v.dials }

// WheelFeed returns the last frame's audio and visual feed of wheel p
func (v *Vehicle) WheelFeed(p physics.WheelPosition) wheel.Feed { return v.feeds[p] }

// Slipping reports whether any wheel slips
func (v *Vehicle) Slipping() bool {
	for _, est := range v.wheelEst {
		if est.Slipping() {
			return true
		}
	}
	return false
}

// Sample builds the telemetry sample of the current state
func (v *Vehicle) Sample() telemetry.Sample {
	e := v.engine.State()
	gear, label := v.Gear()
	return telemetry.Sample{
		Vehicle:            v.name,
		At:                 v.now,
		Timestamp:          time.Now(),
		RPM:                e.RPM,
		Mode:               e.Mode.String(),
		Gear:               gear,
		GearLabel:          label,
		Speed:              v.speed,
		SmoothedSpeed:      v.speedSMA,
		Slipping:           v.Slipping(),
		LocalControl:       v.locallyDriven,
		Throttle:           v.control.Throttle,
		Steering:           v.control.Steering,
		Brake:              v.control.Brake,
		Direction:          v.control.Direction,
		SteeringWheelAngle: v.dials.SteeringWheel,
		SpeedDialAngle:     v.dials.Speed,
		RPMDialAngle:       v.dials.RPM,
	}
}
