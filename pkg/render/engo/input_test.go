// pkg/render/engo/input_test.go
package engo

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/host"
	"github.com/opd-ai/go-vehicle/pkg/seat"
)

type fakeButtons struct {
	down    map[string]bool
	pressed map[string]bool
}

func newFakeButtons(down ...string) *fakeButtons {
	b := &fakeButtons{down: map[string]bool{}, pressed: map[string]bool{}}
	for _, name := range down {
		b.down[name] = true
	}
	return b
}

func (b *fakeButtons) Down(name string) bool        { return b.down[name] }
func (b *fakeButtons) JustPressed(name string) bool { return b.pressed[name] }

func TestKeyboardInput_Sample(t *testing.T) {
	tests := []struct {
		name      string
		down      []string
		wantMove  mgl64.Vec2
		wantBrake bool
	}{
		{"nothing", nil, mgl64.Vec2{0, 0}, false},
		{"forward", []string{ButtonForward}, mgl64.Vec2{0, 1}, false},
		{"backward left", []string{ButtonBackward, ButtonLeft}, mgl64.Vec2{-1, -1}, false},
		{"right", []string{ButtonRight}, mgl64.Vec2{1, 0}, false},
		{"opposing cancel", []string{ButtonForward, ButtonBackward, ButtonLeft, ButtonRight}, mgl64.Vec2{0, 0}, false},
		{"handbrake", []string{ButtonHandbrake}, mgl64.Vec2{0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewKeyboardInputFrom(newFakeButtons(tt.down...)).Sample()
			if in.Move != tt.wantMove {
				t.Errorf("Move = %v, want %v", in.Move, tt.wantMove)
			}
			if in.Jump != tt.wantBrake {
				t.Errorf("Jump = %v, want %v", in.Jump, tt.wantBrake)
			}
			if in.Device != seat.DeviceDesktop {
				t.Errorf("Device = %v, want %v", in.Device, seat.DeviceDesktop)
			}
		})
	}
}

type countingStepper struct {
	variable, fixed int
}

func (c *countingStepper) OnVariableStep(float64) { c.variable++ }
func (c *countingStepper) OnFixedStep(float64)    { c.fixed++ }

func TestVehicleSystem_Update(t *testing.T) {
	buttons := newFakeButtons(ButtonForward)
	station := seat.NewLocalStation()
	stepper := &countingStepper{}
	loop := host.NewLoop(config.HostConfig{FixedStep: 20 * time.Millisecond, MaxFixedStepsPerFrame: 5}, nil, stepper)
	player := &seat.Player{ID: "p1", Name: "Driver", IsLocal: true}

	vs := NewVehicleSystem(NewKeyboardInputFrom(buttons), station, loop, player)

	buttons.pressed[ButtonSeat] = true
	vs.Update(0.05)
	buttons.pressed[ButtonSeat] = false

	if driver, ok := station.Driver(); !ok || driver.ID != "p1" {
		t.Fatalf("Expected the seat key to seat p1, got %v, %v", driver, ok)
	}
	if got := station.Input().Move.Y(); got != 1 {
		t.Errorf("station input forward axis = %v, want 1", got)
	}
	if stepper.variable != 1 || stepper.fixed != 2 {
		t.Errorf("steps = %d variable, %d fixed, want 1 and 2", stepper.variable, stepper.fixed)
	}

	// A stalled frame is clamped before it reaches the loop.
	vs.Update(10)
	if stepper.fixed != 7 {
		t.Errorf("fixed steps after a stall = %d, want 7", stepper.fixed)
	}

	buttons.pressed[ButtonSeat] = true
	vs.Update(0.01)
	if station.IsOccupied() {
		t.Error("Expected the seat key to vacate an occupied seat")
	}
}
