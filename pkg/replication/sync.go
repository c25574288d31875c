// Package replication mirrors the driver's control triple to observers.
// There is no sequencing or staleness guard: an observer replays whatever
// the channel holds, and a delivery gap freezes the last value. Channels
// may also carry wheel slip transitions and the chassis pose.
package replication

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vehicle/pkg/control"
	"github.com/opd-ai/go-vehicle/pkg/physics"
)

// Channel carries the last published control triple
type Channel interface {
	Read() mgl64.Vec3
	Write(v mgl64.Vec3)
}

// MaxPendingSlips bounds the slip transitions a relay queues for an
// observer that has not drained them. The oldest are dropped first.
const MaxPendingSlips = 64

// Slip is a one-shot slip transition of one wheel
type Slip struct {
	Wheel    physics.WheelPosition
	Slipping bool
}

// SlipRelay is implemented by channels that carry slip transitions. The
// owning peer relays each transition; an observer takes the ones received
// since its last call.
type SlipRelay interface {
	RelaySlip(s Slip)
	TakeSlips() []Slip
}

// Pose is the chassis transform of the owning peer
type Pose struct {
	Position mgl64.Vec3
	Heading  float64 // radians
}

// PoseRelay is implemented by channels that carry the chassis pose
type PoseRelay interface {
	RelayPose(p Pose)
	// LatestPose returns the last pose received; ok is false until one has
	// arrived.
	LatestPose() (p Pose, ok bool)
}

// QueueSlip appends s to pending, dropping the oldest entry when the queue
// is full.
func QueueSlip(pending []Slip, s Slip) []Slip {
	if len(pending) >= MaxPendingSlips {
		pending = append(pending[:0], pending[len(pending)-MaxPendingSlips+1:]...)
	}
	return append(pending, s)
}

// Shared is an in-process Channel, SlipRelay and PoseRelay. Last write
// wins for the triple and the pose.
type Shared struct {
	mu       sync.RWMutex
	v        mgl64.Vec3
	slips    []Slip
	pose     Pose
	havePose bool
}

// NewShared creates an empty shared channel
func NewShared() *Shared {
	return &Shared{}
}

// Read returns the last written triple
func (s *Shared) Read() mgl64.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Write replaces the triple
func (s *Shared) Write(v mgl64.Vec3) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

// RelaySlip queues s for the next TakeSlips
func (s *Shared) RelaySlip(slip Slip) {
	s.mu.Lock()
	s.slips = QueueSlip(s.slips, slip)
	s.mu.Unlock()
}

// TakeSlips returns and clears the queued transitions
func (s *Shared) TakeSlips() []Slip {
	s.mu.Lock()
	defer s.mu.Unlock()
	slips := s.slips
	s.slips = nil
	return slips
}

// RelayPose replaces the pose
func (s *Shared) RelayPose(p Pose) {
	s.mu.Lock()
	s.pose = p
	s.havePose = true
	s.mu.Unlock()
}

// LatestPose returns the last relayed pose
func (s *Shared) LatestPose() (Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, s.havePose
}

// Posable is a chassis whose transform can be read and overwritten
type Posable interface {
	Position() mgl64.Vec3
	Heading() float64
	SetPose(pos mgl64.Vec3, heading float64)
}

// PoseSync mirrors the chassis pose through a PoseRelay once per frame.
// The owner relays its body; observers place their body at the latest pose
// received. Add it to the host before the vehicle so observer wheel hubs
// have moved by the time the vehicle estimates their roll.
type PoseSync struct {
	Body  Posable
	Relay PoseRelay
	Owned func() bool
}

// OnVariableStep relays or applies the pose
func (p *PoseSync) OnVariableStep(float64) {
	if p.Relay == nil || p.Body == nil {
		return
	}
	if p.Owned != nil && p.Owned() {
		p.Relay.RelayPose(Pose{Position: p.Body.Position(), Heading: p.Body.Heading()})
		return
	}
	if pose, ok := p.Relay.LatestPose(); ok {
		p.Body.SetPose(pose.Position, pose.Heading)
	}
}

// OnFixedStep does nothing
func (p *PoseSync) OnFixedStep(float64) {}

// Synchronizer encodes the driver's state on the owning peer and decodes it
// everywhere else.
type Synchronizer struct {
	Channel Channel
}

// NewSynchronizer creates a synchronizer on ch
func NewSynchronizer(ch Channel) *Synchronizer {
	return &Synchronizer{Channel: ch}
}

// Encode packs (throttle, steering, direction) and publishes it
func (s *Synchronizer) Encode(state control.State) {
	if s == nil || s.Channel == nil {
		return
	}
	s.Channel.Write(mgl64.Vec3{state.Throttle, state.Steering, float64(state.Direction)})
}

// Decode overwrites throttle, steering and direction of state with the
// channel contents. Brake and handbrake are not replicated and are left
// untouched.
func (s *Synchronizer) Decode(state *control.State) {
	if s == nil || s.Channel == nil {
		return
	}
	v := s.Channel.Read()
	state.Throttle = physics.Clamp(v.X(), -1, 1)
	state.Steering = physics.Clamp(v.Y(), -1, 1)
	state.Direction = int(physics.Sign(v.Z()))
}
