// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event
type Type string

// Vehicle event types
const (
	DriverEntered     Type = "driver_entered"
	DriverLeft        Type = "driver_left"
	EngineModeChanged Type = "engine_mode_changed"
	GearChanged       Type = "gear_changed"
	WheelSlipChanged  Type = "wheel_slip_changed"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies one registered handler. Cancel removes it and is
// safe to call more than once.
type Subscription struct {
	ID     uint64
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching. Handlers run
// synchronously on the publishing goroutine.
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribed handlers. A nil bus drops the
// event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// DriverEvent is published when a driver takes or leaves the seat
type DriverEvent struct {
	BaseEvent
	PlayerID  string
	SessionID string
	Local     bool
}

// NewDriverEvent creates a new driver event
func NewDriverEvent(eventType Type, source interface{}, playerID, sessionID string, local bool) *DriverEvent {
	return &DriverEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		PlayerID:  playerID,
		SessionID: sessionID,
		Local:     local,
	}
}

// EngineModeEvent contains an engine state transition. Modes are carried as
// their string names.
type EngineModeEvent struct {
	BaseEvent
	From string
	To   string
	RPM  float64
}

// NewEngineModeEvent creates a new engine mode event
func NewEngineModeEvent(source interface{}, from, to string, rpm float64) *EngineModeEvent {
	return &EngineModeEvent{
		BaseEvent: BaseEvent{
			EventType: EngineModeChanged,
			Source:    source,
		},
		From: from,
		To:   to,
		RPM:  rpm,
	}
}

// GearEvent contains a gearbox shift
type GearEvent struct {
	BaseEvent
	From  int
	To    int
	Label string
}

// NewGearEvent creates a new gear event
func NewGearEvent(source interface{}, from, to int, label string) *GearEvent {
	return &GearEvent{
		BaseEvent: BaseEvent{
			EventType: GearChanged,
			Source:    source,
		},
		From:  from,
		To:    to,
		Label: label,
	}
}

// WheelSlipEvent is the one-shot slip notification of a single wheel
type WheelSlipEvent struct {
	BaseEvent
	Wheel    string
	Slipping bool
}

// NewWheelSlipEvent creates a new wheel slip event
func NewWheelSlipEvent(source interface{}, wheel string, slipping bool) *WheelSlipEvent {
	return &WheelSlipEvent{
		BaseEvent: BaseEvent{
			EventType: WheelSlipChanged,
			Source:    source,
		},
		Wheel:    wheel,
		Slipping: slipping,
	}
}

// SlipPublisher forwards wheel slip transitions of one wheel onto a bus
type SlipPublisher struct {
	Bus    *Bus
	Source interface{}
	Wheel  string
}

// NotifySlip publishes a WheelSlipChanged event
func (p SlipPublisher) NotifySlip(slipping bool) {
	p.Bus.Publish(NewWheelSlipEvent(p.Source, p.Wheel, slipping))
}
