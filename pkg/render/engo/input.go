// pkg/render/engo/input.go
package engo

import (
	"github.com/EngoEngine/engo"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// Button names registered by SetupInputBindings
const (
	ButtonForward   = "forward"
	ButtonBackward  = "backward"
	ButtonLeft      = "left"
	ButtonRight     = "right"
	ButtonHandbrake = "handbrake"
	ButtonSeat      = "seat"
)

// Buttons reads named button state
type Buttons interface {
	Down(name string) bool
	JustPressed(name string) bool
}

type engoButtons struct{}

func (engoButtons) Down(name string) bool        { return engo.Input.Button(name).Down() }
func (engoButtons) JustPressed(name string) bool { return engo.Input.Button(name).JustPressed() }

// KeyboardInput turns the desktop driving keys into an input sample
type KeyboardInput struct {
	buttons Buttons
}

// NewKeyboardInput reads from engo's global input manager
func NewKeyboardInput() *KeyboardInput {
	return &KeyboardInput{buttons: engoButtons{}}
}

// NewKeyboardInputFrom reads from b
func NewKeyboardInputFrom(b Buttons) *KeyboardInput {
	return &KeyboardInput{buttons: b}
}

// Sample returns the current key state as a desktop input sample. Opposing
// keys cancel out.
func (k *KeyboardInput) Sample() seat.InputSample {
	return seat.InputSample{
		Move: mgl64.Vec2{
			k.axis(ButtonRight, ButtonLeft),
			k.axis(ButtonForward, ButtonBackward),
		},
		Jump:   k.buttons.Down(ButtonHandbrake),
		Device: seat.DeviceDesktop,
	}
}

// SeatToggled reports whether the enter/leave key was pressed this frame
func (k *KeyboardInput) SeatToggled() bool {
	return k.buttons.JustPressed(ButtonSeat)
}

func (k *KeyboardInput) axis(positive, negative string) float64 {
	v := 0.0
	if k.buttons.Down(positive) {
		v++
	}
	if k.buttons.Down(negative) {
		v--
	}
	return v
}

// SetupInputBindings sets up the key bindings for driving
func SetupInputBindings() {
	engo.Input.RegisterButton(ButtonForward, engo.KeyW, engo.KeyArrowUp)
	engo.Input.RegisterButton(ButtonBackward, engo.KeyS, engo.KeyArrowDown)
	engo.Input.RegisterButton(ButtonLeft, engo.KeyA, engo.KeyArrowLeft)
	engo.Input.RegisterButton(ButtonRight, engo.KeyD, engo.KeyArrowRight)
	engo.Input.RegisterButton(ButtonHandbrake, engo.KeySpace)
	engo.Input.RegisterButton(ButtonSeat, engo.KeyE)
}
