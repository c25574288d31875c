// pkg/render/engo/system.go
package engo

import (
	"time"

	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-vehicle/pkg/host"
	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// maxFrame bounds the frame time handed to the loop after a stall
const maxFrame = 250 * time.Millisecond

// VehicleSystem feeds keyboard input into the seat and advances the host
// loop once per engo frame.
type VehicleSystem struct {
	input   *KeyboardInput
	station *seat.LocalStation
	loop    *host.Loop
	player  *seat.Player
}

// NewVehicleSystem creates the system. player is seated and unseated by
// the seat key.
func NewVehicleSystem(input *KeyboardInput, station *seat.LocalStation, loop *host.Loop, player *seat.Player) *VehicleSystem {
	return &VehicleSystem{
		input:   input,
		station: station,
		loop:    loop,
		player:  player,
	}
}

// Remove satisfies the ecs.System interface
func (vs *VehicleSystem) Remove(basic ecs.BasicEntity) {}

// Update samples the keyboard and runs one host frame
func (vs *VehicleSystem) Update(dt float32) {
	if vs.input.SeatToggled() && vs.player != nil {
		if vs.station.IsOccupied() {
			vs.station.Vacate()
		} else {
			vs.station.Seat(vs.player)
		}
	}
	vs.station.SetInput(vs.input.Sample())

	frame := time.Duration(float64(dt) * float64(time.Second))
	if frame > maxFrame {
		frame = maxFrame
	}
	vs.loop.Frame(frame)
}
