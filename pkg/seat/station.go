// Package seat models the occupancy collaborator: who is in the driver
// seat, and what input they produce this frame.
package seat

import (
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// DeviceClass selects the input mapping
type DeviceClass int

const (
	DeviceDesktop DeviceClass = iota
	DeviceVR
)

func (d DeviceClass) String() string {
	if d == DeviceVR {
		return "vr"
	}
	return "desktop"
}

// InputSample is the raw driver input of one frame. Desktop input uses
// Move (digital axes in [-1, 1]) and Jump; VR uses the two sticks.
type InputSample struct {
	Move       mgl64.Vec2
	LeftStick  mgl64.Vec2
	RightStick mgl64.Vec2
	Jump       bool
	Device     DeviceClass
}

// Player is a seat occupant
type Player struct {
	ID      string
	Name    string
	IsLocal bool
}

// Station is the seat surface the vehicle consumes
type Station interface {
	IsOccupied() bool
	Driver() (*Player, bool)
	Input() InputSample
	OnPlayerEntered(func(*Player))
	OnPlayerLeft(func(*Player))
}

// LocalStation is an in-memory Station. Seat, Vacate and SetInput may be
// called from any goroutine; handlers run on the caller of Seat or Vacate.
type LocalStation struct {
	mu      sync.RWMutex
	driver  *Player
	input   InputSample
	entered []func(*Player)
	left    []func(*Player)
}

// NewLocalStation creates an empty station
func NewLocalStation() *LocalStation {
	return &LocalStation{}
}

// IsOccupied reports whether someone sits in the driver seat
func (s *LocalStation) IsOccupied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver != nil
}

// Driver returns the current occupant
func (s *LocalStation) Driver() (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver, s.driver != nil
}

// Input returns the latest input sample
func (s *LocalStation) Input() InputSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input
}

// SetInput stores the input sample read by the next frame
func (s *LocalStation) SetInput(in InputSample) {
	s.mu.Lock()
	s.input = in
	s.mu.Unlock()
}

// OnPlayerEntered registers a handler for seat entry
func (s *LocalStation) OnPlayerEntered(fn func(*Player)) {
	s.mu.Lock()
	s.entered = append(s.entered, fn)
	s.mu.Unlock()
}

// OnPlayerLeft registers a handler for seat exit
func (s *LocalStation) OnPlayerLeft(fn func(*Player)) {
	s.mu.Lock()
	s.left = append(s.left, fn)
	s.mu.Unlock()
}

// Seat puts p in the driver seat. An occupant already seated is replaced
// and receives a left notification first.
func (s *LocalStation) Seat(p *Player) {
	if p == nil {
		return
	}
	if prev, ok := s.Driver(); ok {
		if prev == p {
			return
		}
		s.Vacate()
	}

	s.mu.Lock()
	s.driver = p
	handlers := slices.Clone(s.entered)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(p)
	}
}

// Vacate empties the driver seat and clears the input
func (s *LocalStation) Vacate() {
	s.mu.Lock()
	p := s.driver
	s.driver = nil
	s.input = InputSample{}
	handlers := slices.Clone(s.left)
	s.mu.Unlock()

	if p == nil {
		return
	}
	for _, fn := range handlers {
		fn(p)
	}
}
