// Package vehicle assembles the simulation core of one occupiable vehicle.
// The host calls OnVariableStep once per rendered frame and OnFixedStep at
// the physics rate; the two never run concurrently.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/control"
	"github.com/opd-ai/go-vehicle/pkg/engine"
	"github.com/opd-ai/go-vehicle/pkg/event"
	"github.com/opd-ai/go-vehicle/pkg/gearbox"
	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/replication"
	"github.com/opd-ai/go-vehicle/pkg/seat"
	"github.com/opd-ai/go-vehicle/pkg/steering"
	"github.com/opd-ai/go-vehicle/pkg/telemetry"
	"github.com/opd-ai/go-vehicle/pkg/wheel"
)

// ErrMissingPart is returned by New when a required collaborator is nil
var ErrMissingPart = errors.New("missing vehicle part")

// referenceWheel drives the engine's wheel-equivalent rpm. Only one wheel
// is read, so the reading is asymmetric in corners.
const referenceWheel = physics.RearLeft

// speedWheel drives the owner's speed estimate
const speedWheel = physics.FrontLeft

// Parts are the external collaborators of a vehicle
type Parts struct {
	Body    physics.Body
	Wheels  [4]physics.WheelCollider // indexed by physics.WheelPosition
	Station seat.Station
	Channel replication.Channel
}

// Options are the optional collaborators of a vehicle
type Options struct {
	Bus    *event.Bus
	Sink   telemetry.Sink
	Logger *logging.Logger
}

// Vehicle owns the control, engine and gear state of one vehicle
type Vehicle struct {
	name    string
	config  config.VehicleConfig
	body    physics.Body
	wheels  [4]physics.WheelCollider
	station seat.Station
	sync    *replication.Synchronizer
	slips   replication.SlipRelay

	bus    *event.Bus
	sink   telemetry.Sink
	logger *logging.Logger
	ctx    context.Context

	control  control.State
	desktop  control.Mapper
	vr       control.Mapper
	engine   *engine.Model
	gearbox  *gearbox.Gearbox
	geometry steering.Geometry
	wheelEst [4]*wheel.Estimator
	feeds    [4]wheel.Feed

	now           time.Duration
	locallyDriven bool
	driver        *seat.Player

	speed    float64
	speedSMA float64
	samples  []float64
	sampleN  int
	lastPos  mgl64.Vec3
	dials    Dials
}

// New assembles a vehicle and registers its enter and leave handlers on the
// station. If the station is already occupied the engine starts idling.
func New(cfg config.VehicleConfig, parts Parts, opts Options) (*Vehicle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if parts.Body == nil {
		return nil, fmt.Errorf("%w: body", ErrMissingPart)
	}
	if parts.Station == nil {
		return nil, fmt.Errorf("%w: station", ErrMissingPart)
	}
	for _, p := range physics.WheelPositions {
		if parts.Wheels[p] == nil {
			return nil, fmt.Errorf("%w: wheel %s", ErrMissingPart, p)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	v := &Vehicle{
		name:    cfg.Name,
		config:  cfg,
		body:    parts.Body,
		wheels:  parts.Wheels,
		station: parts.Station,
		sync:    replication.NewSynchronizer(parts.Channel),
		bus:     opts.Bus,
		sink:    opts.Sink,
		logger:  logger.With("vehicle", cfg.Name),
		ctx:     context.Background(),
		control: control.State{Direction: 1},
		engine:  engine.NewModel(cfg.Engine),
		gearbox: gearbox.New(cfg.Gearbox, cfg.Engine.MaxRPM),
		samples: make([]float64, cfg.Chassis.SpeedSamples),
		lastPos: parts.Body.Position(),
	}
	v.desktop, v.vr = control.NewMappers(cfg.Control)
	v.geometry = steering.NewGeometry(
		parts.Wheels[physics.RearLeft].Position(),
		parts.Wheels[physics.FrontLeft].Position(),
		parts.Wheels[physics.FrontRight].Position(),
		cfg.Steering,
	)
	v.slips, _ = parts.Channel.(replication.SlipRelay)
	for _, p := range physics.WheelPositions {
		notifier := slipNotifier{
			local:  event.SlipPublisher{Bus: opts.Bus, Source: cfg.Name, Wheel: p.String()},
			remote: v.slips,
			wheel:  p,
		}
		v.wheelEst[p] = wheel.NewEstimator(parts.Wheels[p], cfg.Wheel, notifier)
	}

	parts.Station.OnPlayerEntered(v.OnEnter)
	parts.Station.OnPlayerLeft(func(*seat.Player) { v.OnLeave() })

	if driver, ok := parts.Station.Driver(); ok {
		v.driver = driver
		v.ctx = logging.WithSessionID(context.Background(), "")
		v.engine.Idle(0)
	}

	return v, nil
}

// OnEnter is the driver-entered handler. It restarts the engine regardless
// of its prior state.
func (v *Vehicle) OnEnter(p *seat.Player) {
	v.ctx = logging.WithSessionID(context.Background(), "")
	v.driver = p
	v.body.SetDrag(0, 0)
	v.gearbox.Reset()
	before := v.engine.State().Mode
	v.modeChanged(before, v.engine.Start(v.now).Mode)

	id, local := "", false
	if p != nil {
		id, local = p.ID, p.IsLocal
	}
	v.logger.Info(v.ctx, "Driver entered", "player_id", id, "local", local)
	v.bus.Publish(event.NewDriverEvent(event.DriverEntered, v.name, id, logging.GetSessionID(v.ctx), local))
}

// OnLeave is the driver-left handler. It parks the vehicle with every brake
// on and the engine off, regardless of prior state.
func (v *Vehicle) OnLeave() {
	v.control.Throttle = 0
	v.control.Brake = 1
	v.control.Handbrake = false
	for _, p := range physics.WheelPositions {
		v.wheels[p].SetBrakeTorque(v.config.Braking.HandbrakeTorque)
		v.wheels[p].SetMotorTorque(0)
	}
	before := v.engine.State().Mode
	v.modeChanged(before, v.engine.Stop().Mode)

	v.body.SetVelocity(mgl64.Vec3{})
	v.body.SetAngularVelocity(mgl64.Vec3{})

	id := ""
	if v.driver != nil {
		id = v.driver.ID
	}
	v.logger.Info(v.ctx, "Driver left", "player_id", id)
	v.bus.Publish(event.NewDriverEvent(event.DriverLeft, v.name, id, logging.GetSessionID(v.ctx), false))

	v.driver = nil
	v.locallyDriven = false
}

// OnVariableStep runs once per rendered frame: authority, input mapping or
// replay, parked-body handling, wheel visuals, dials and telemetry.
func (v *Vehicle) OnVariableStep(dt float64) {
	v.updateAuthority(dt)

	if v.locallyDriven {
		v.sync.Encode(v.control)
	} else {
		v.sync.Decode(&v.control)
	}

	for _, est := range v.wheelEst {
		est.SetOwned(v.locallyDriven)
	}
	if !v.locallyDriven && v.slips != nil {
		for _, s := range v.slips.TakeSlips() {
			v.HandleSlip(s.Wheel, s.Slipping)
		}
	}

	lateral := v.body.Right()
	for _, p := range physics.WheelPositions {
		v.feeds[p] = v.wheelEst[p].Frame(dt, v.wheels[p].Position(), lateral)
	}

	v.dials = computeDials(v.control.Steering, v.speedSMA, v.engine.State().RPM, v.geometry.MaxSteerAngle(), v.config.Engine.MaxRPM)

	if v.sink != nil {
		v.sink.Record(v.ctx, v.Sample())
	}
}

func (v *Vehicle) updateAuthority(dt float64) {
	if !v.station.IsOccupied() {
		v.locallyDriven = false
		v.body.SetVelocity(mgl64.Vec3{})
		v.body.SetAngularVelocity(mgl64.Vec3{})
		v.body.SetDrag(v.config.Chassis.ParkedLinearDrag, v.config.Chassis.ParkedAngularDrag)
		return
	}

	player, ok := v.station.Driver()
	if !ok || player == nil || !player.IsLocal {
		v.locallyDriven = false
		return
	}

	v.body.SetDrag(0, 0)
	v.locallyDriven = true
	if v.control.Direction == 0 {
		v.control.Direction = 1
	}
	in := v.station.Input()
	control.Select(in, v.desktop, v.vr).Map(&v.control, in, v.speedSMA, dt)
}

// OnFixedStep runs at the physics rate: speed estimate, braking and drive
// torque, steering, engine and gearbox, slip detection.
func (v *Vehicle) OnFixedStep(dt float64) {
	if dt <= 0 {
		return
	}
	v.now += time.Duration(dt * float64(time.Second))
	v.updateSpeed(dt)

	if v.locallyDriven {
		v.applyDrive()
	} else {
		for _, p := range physics.WheelPositions {
			v.wheels[p].SetBrakeTorque(0)
		}
	}

	v.geometry.Apply(v.control.Steering, v.wheels[physics.FrontLeft], v.wheels[physics.FrontRight])
	v.advanceEngine()

	for _, est := range v.wheelEst {
		est.FixedStep()
	}
}

func (v *Vehicle) updateSpeed(dt float64) {
	if v.locallyDriven {
		w := v.wheels[speedWheel]
		v.speed = w.RPM() * w.Radius() * math.Pi * 2 * 0.06
	} else {
		pos := v.body.Position()
		v.speed = pos.Sub(v.lastPos).Len() / dt
		v.lastPos = pos
	}

	v.samples[v.sampleN%len(v.samples)] = v.speed
	v.sampleN++

	var sum float64
	for _, s := range v.samples {
		sum += s
	}
	v.speedSMA = sum / float64(len(v.samples))
}

func (v *Vehicle) applyDrive() {
	c := &v.control
	b := v.config.Braking

	// the owner's smoothed speed is signed: rolling forward faster than the
	// flip speed while in reverse selects forward again
	if v.speedSMA > v.config.Control.DirectionFlipSpeed && c.Direction < 0 {
		c.Direction = -c.Direction
	}

	rl, rr := v.wheels[physics.RearLeft], v.wheels[physics.RearRight]
	if c.Brake < v.config.Control.NearZero {
		for _, p := range physics.WheelPositions {
			v.wheels[p].SetBrakeTorque(0)
		}
		torque := 0.0
		if (c.Throttle > 0 && c.Direction > 0) || (c.Throttle < 0 && c.Direction < 0) {
			torque = c.Throttle * v.engine.Torque() * b.MotorMaxTorque * (v.config.Gearbox.GearFactor * v.gearbox.Ratio()) / 2
		}
		rl.SetMotorTorque(torque)
		rr.SetMotorTorque(torque)
	} else {
		braking := c.Brake*b.MaxBrakeTorque + v.speedSMA*b.SpeedBrakeFactor
		v.wheels[physics.FrontLeft].SetBrakeTorque(braking)
		v.wheels[physics.FrontRight].SetBrakeTorque(braking)
		rl.SetBrakeTorque(braking / 2)
		rr.SetBrakeTorque(braking / 2)
		rl.SetMotorTorque(0)
		rr.SetMotorTorque(0)
	}

	if c.Handbrake {
		rl.SetBrakeTorque(b.HandbrakeTorque)
		rr.SetBrakeTorque(b.HandbrakeTorque)
	}
}

func (v *Vehicle) advanceEngine() {
	before := v.engine.State().Mode
	if !v.engine.State().Running() {
		v.modeChanged(before, v.engine.Advance(engine.Tick{Now: v.now, Throttle: v.control.Throttle}).Mode)
		return
	}

	ref := v.wheels[referenceWheel]
	r := ref.Radius()
	speed := v.speedSMA
	if v.locallyDriven {
		speed = 2 * math.Pi * r * (ref.RPM() / 60)
	}
	wheelRPM := 0.0
	if r > 0 {
		wheelRPM = speed * 60 / (2 * math.Pi * r)
	}
	equivalent := v.gearbox.EquivalentRPM(wheelRPM)

	from := v.gearbox.Index()
	if shift := v.gearbox.Update(equivalent); shift != 0 {
		label := v.gearbox.Label(v.control.Direction)
		v.logger.Debug(v.ctx, "Gear changed", "from", from, "to", v.gearbox.Index(), "label", label)
		v.bus.Publish(event.NewGearEvent(v.name, from, v.gearbox.Index(), label))
	}

	state := v.engine.Advance(engine.Tick{Now: v.now, Throttle: v.control.Throttle, WheelEquivalentRPM: equivalent})
	v.modeChanged(before, state.Mode)
}

func (v *Vehicle) modeChanged(before, after engine.Mode) {
	if before == after {
		return
	}
	rpm := v.engine.State().RPM
	v.logger.Debug(v.ctx, "Engine mode changed", "from", before.String(), "to", after.String(), "rpm", rpm)
	v.bus.Publish(event.NewEngineModeEvent(v.name, before.String(), after.String(), rpm))
}

// HandleSlip applies a slip notification for wheel p received from the
// owning peer. Owned wheels and unknown positions are ignored.
func (v *Vehicle) HandleSlip(p physics.WheelPosition, slipping bool) {
	if p < physics.FrontLeft || p > physics.RearRight {
		return
	}
	if est := v.wheelEst[p]; !est.Owned() {
		est.HandleSlip(slipping)
	}
}

// slipNotifier sends the slip edges of one owned wheel to the local bus and
// to the peers behind the replication channel, if it carries slips.
type slipNotifier struct {
	local  event.SlipPublisher
	remote replication.SlipRelay
	wheel  physics.WheelPosition
}

func (n slipNotifier) NotifySlip(slipping bool) {
	n.local.NotifySlip(slipping)
	if n.remote != nil {
		n.remote.RelaySlip(replication.Slip{Wheel: n.wheel, Slipping: slipping})
	}
}

// StandParts mounts a vehicle on a kinematic test stand
func StandParts(stand *physics.Stand, station seat.Station, channel replication.Channel) Parts {
	parts := Parts{Body: stand, Station: station, Channel: channel}
	for _, p := range physics.WheelPositions {
		parts.Wheels[p] = stand.Wheel(p)
	}
	return parts
}
