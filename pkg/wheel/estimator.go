// Package wheel animates a single wheel. The owning peer reads spin and
// slip from the collider; observers have no physics and infer the spin from
// how far the hub moved between frames.
package wheel

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
)

// SlipNotifier receives the one-shot slip transitions of an owned wheel
type SlipNotifier interface {
	NotifySlip(slipping bool)
}

// Feed is the per-frame output toward the audio and visual collaborators
type Feed struct {
	Speed            float64 // m/s
	RotationDelta    float64 // degrees applied this frame, observer only
	ScreechVolume    float64 // [0, 1]
	Slipping         bool
	ParticlesVisible bool
}

// Estimator holds the per-wheel roll and slip state
type Estimator struct {
	collider physics.WheelCollider
	config   config.WheelConfig
	notifier SlipNotifier

	owned       bool
	slipping    bool
	notified    bool
	lastPos     mgl64.Vec3
	rollDegrees float64
}

// NewEstimator creates an estimator for collider. notifier may be nil.
func NewEstimator(collider physics.WheelCollider, cfg config.WheelConfig, notifier SlipNotifier) *Estimator {
	return &Estimator{
		collider: collider,
		config:   cfg,
		notifier: notifier,
		lastPos:  collider.Position(),
	}
}

// SetOwned is called when this peer gains or loses physics authority. The
// slip flag is cleared on every change: a new owner detects slip itself on
// its next fixed step and an observer waits for the owner's notification.
func (e *Estimator) SetOwned(owned bool) {
	if owned == e.owned {
		return
	}
	e.owned = owned
	e.slipping = false
	e.notified = false
	e.lastPos = e.collider.Position()
}

// Owned reports whether this peer simulates the wheel
func (e *Estimator) Owned() bool { return e.owned }

// Slipping reports the current slip flag
func (e *Estimator) Slipping() bool { return e.slipping }

// RollDegrees returns the accumulated observer roll angle
func (e *Estimator) RollDegrees() float64 { return e.rollDegrees }

// DetectSlip classifies a ground contact. An airborne wheel never slips.
func DetectSlip(hit physics.GroundHit, grounded bool, cfg config.WheelConfig) bool {
	if !grounded {
		return false
	}
	return math.Abs(hit.ForwardSlip) > cfg.ForwardSlipLimit || math.Abs(hit.LateralSlip) > cfg.LateralSlipLimit
}

// FixedStep samples the contact and notifies on every slip transition. It
// does nothing on observers.
func (e *Estimator) FixedStep() {
	if !e.owned {
		return
	}
	hit, ok := e.collider.GroundHit()
	e.slipping = DetectSlip(hit, ok, e.config)

	if e.slipping != e.notified {
		e.notified = e.slipping
		if e.notifier != nil {
			e.notifier.NotifySlip(e.slipping)
		}
	}
}

// HandleSlip applies a slip notification received from the owner
func (e *Estimator) HandleSlip(slipping bool) {
	e.slipping = slipping
}

// Frame advances the visuals by dt seconds. pos is the hub position this
// frame and lateral the chassis lateral axis.
func (e *Estimator) Frame(dt float64, pos, lateral mgl64.Vec3) Feed {
	r := e.collider.Radius()
	speed := 2 * math.Pi * r * e.collider.RPM() / 60

	var rotation float64
	if !e.owned {
		delta := e.lastPos.Sub(pos)
		dist := delta.Len()
		speed = 0
		if dt > 0 {
			speed = dist / dt
		}
		if r > 0 {
			rotation = 360 * dist / (2 * math.Pi * r) * physics.Sign(lateral.Dot(delta))
		}
		e.rollDegrees = math.Mod(e.rollDegrees+rotation, 360)
		e.lastPos = pos
	}

	return Feed{
		Speed:            speed,
		RotationDelta:    rotation,
		ScreechVolume:    physics.InverseLerp(0, e.config.ScreechFullSpeed, speed),
		Slipping:         e.slipping,
		ParticlesVisible: e.slipping,
	}
}
