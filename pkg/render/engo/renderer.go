// pkg/render/engo/renderer.go
package engo

import (
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/vehicle"
)

var (
	bodyColor     = color.RGBA{70, 110, 200, 255}
	wheelColor    = color.RGBA{30, 30, 30, 255}
	slippingColor = color.RGBA{220, 60, 40, 255}
)

type shape struct {
	basic  ecs.BasicEntity
	render common.RenderComponent
	space  common.SpaceComponent
}

func newShape(width, height float32, c color.Color) *shape {
	return &shape{
		basic:  ecs.NewBasic(),
		render: common.RenderComponent{Drawable: common.Rectangle{}, Color: c},
		space:  common.SpaceComponent{Width: width, Height: height},
	}
}

// StandRenderer draws a top-down view of the test stand: the chassis and
// its four wheels, with slipping wheels highlighted.
type StandRenderer struct {
	stand   *physics.Stand
	vehicle *vehicle.Vehicle
	origin  engo.Point
	scale   float32 // pixels per metre

	body   *shape
	wheels [4]*shape
}

// NewStandRenderer creates the shapes for stand. World (0, 0) is drawn at
// origin.
func NewStandRenderer(stand *physics.Stand, cfg physics.StandConfig, v *vehicle.Vehicle, origin engo.Point, scale float32) *StandRenderer {
	r := &StandRenderer{
		stand:   stand,
		vehicle: v,
		origin:  origin,
		scale:   scale,
		body: newShape(
			float32(cfg.TrackWidth)*scale,
			float32(cfg.WheelBase)*scale,
			bodyColor,
		),
	}
	diameter := float32(cfg.WheelRadius*2) * scale
	for _, p := range physics.WheelPositions {
		r.wheels[p] = newShape(diameter/3, diameter, wheelColor)
	}
	return r
}

// Attach adds the shapes to the render system
func (r *StandRenderer) Attach(rs *common.RenderSystem) {
	rs.Add(&r.body.basic, &r.body.render, &r.body.space)
	for _, w := range r.wheels {
		rs.Add(&w.basic, &w.render, &w.space)
	}
}

// Remove satisfies the ecs.System interface
func (r *StandRenderer) Remove(basic ecs.BasicEntity) {}

// Update moves the shapes to the current pose of the stand
func (r *StandRenderer) Update(dt float32) {
	heading := float32(r.stand.Heading() * physics.Rad2Deg)

	r.body.space.Rotation = heading
	r.body.space.SetCenter(r.worldToScreen(r.stand.Position()))

	for _, p := range physics.WheelPositions {
		w := r.wheels[p]
		wheel := r.stand.Wheel(p)
		w.space.Rotation = heading + float32(wheel.SteerAngle())
		w.space.SetCenter(r.worldToScreen(wheel.Position()))

		w.render.Color = wheelColor
		if r.vehicle != nil && r.vehicle.WheelFeed(p).Slipping {
			w.render.Color = slippingColor
		}
	}
}

// worldToScreen projects the ground plane: +X is right, +Z is up the screen
func (r *StandRenderer) worldToScreen(p mgl64.Vec3) engo.Point {
	return engo.Point{
		X: r.origin.X + float32(p.X())*r.scale,
		Y: r.origin.Y - float32(p.Z())*r.scale,
	}
}
