// pkg/render/engo/renderer_test.go
package engo

import (
	"math"
	"testing"

	"github.com/EngoEngine/engo"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/physics"
)

func closeTo(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func TestStandRenderer_Update(t *testing.T) {
	cfg := physics.DefaultStandConfig()
	stand := physics.NewStand(cfg)
	stand.SetPose(mgl64.Vec3{1, 0, 2}, 0)

	r := NewStandRenderer(stand, cfg, nil, engo.Point{X: 400, Y: 300}, 10)
	r.Update(0)

	// Body centre at (400 + 10, 300 - 20), 16 x 26 pixels.
	body := r.body.space
	if !closeTo(body.Width, 16) || !closeTo(body.Height, 26) {
		t.Errorf("body size = %v x %v, want 16 x 26", body.Width, body.Height)
	}
	if !closeTo(body.Position.X, 402) || !closeTo(body.Position.Y, 267) {
		t.Errorf("body position = %v, want (402, 267)", body.Position)
	}

	fl := r.wheels[physics.FrontLeft].space
	fr := r.wheels[physics.FrontRight].space
	if fl.Position.X >= fr.Position.X {
		t.Errorf("front left wheel x %v should be left of front right x %v", fl.Position.X, fr.Position.X)
	}
	rl := r.wheels[physics.RearLeft].space
	if fl.Position.Y >= rl.Position.Y {
		t.Errorf("front wheel y %v should be above rear wheel y %v", fl.Position.Y, rl.Position.Y)
	}
}

func TestStandRenderer_SteerRotatesFrontWheels(t *testing.T) {
	cfg := physics.DefaultStandConfig()
	stand := physics.NewStand(cfg)
	stand.Wheel(physics.FrontLeft).SetSteerAngle(15)

	r := NewStandRenderer(stand, cfg, nil, engo.Point{}, 10)
	r.Update(0)

	if got := r.wheels[physics.FrontLeft].space.Rotation; !closeTo(got, 15) {
		t.Errorf("front left rotation = %v, want 15", got)
	}
	if got := r.wheels[physics.RearLeft].space.Rotation; got != 0 {
		t.Errorf("rear left rotation = %v, want 0", got)
	}
}

func TestNewScene(t *testing.T) {
	scene, err := NewScene(config.DefaultConfig(), SceneOptions{})
	if err != nil {
		t.Fatalf("NewScene() error = %v", err)
	}
	if scene.Type() != "VehicleScene" {
		t.Errorf("Type() = %q, want %q", scene.Type(), "VehicleScene")
	}
	if scene.Vehicle() == nil || scene.Loop() == nil || scene.Station() == nil {
		t.Fatal("Expected the scene to build its vehicle, loop and station")
	}

	// Parked until someone takes the seat.
	scene.Loop().Frame(scene.Loop().FixedStep())
	if scene.Vehicle().Engine().Running() {
		t.Error("Expected an empty vehicle to keep its engine off")
	}
}

func TestNewScene_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Host.FixedStep = 0
	if _, err := NewScene(cfg, SceneOptions{}); err == nil {
		t.Error("Expected an invalid config to fail")
	}
}
