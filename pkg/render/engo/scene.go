// pkg/render/engo/scene.go
package engo

import (
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/host"
	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/replication"
	"github.com/opd-ai/go-vehicle/pkg/seat"
	"github.com/opd-ai/go-vehicle/pkg/vehicle"
)

// pixelsPerMetre is the top-down zoom of the scene
const pixelsPerMetre = 20

// SceneOptions are the collaborators of a Scene
type SceneOptions struct {
	Channel replication.Channel // nil for a private channel
	Player  *seat.Player        // nil drives as observer only
	Vehicle vehicle.Options
}

// Scene drives one vehicle on a kinematic stand from the keyboard
type Scene struct {
	stand      *physics.Stand
	standCfg   physics.StandConfig
	station    *seat.LocalStation
	vehicle    *vehicle.Vehicle
	loop       *host.Loop
	player     *seat.Player
	standDrawn *StandRenderer
}

// NewScene builds the vehicle and its host loop. The engo world is wired
// later in Setup.
func NewScene(cfg *config.VehicleConfig, opts SceneOptions) (*Scene, error) {
	channel := opts.Channel
	if channel == nil {
		channel = replication.NewShared()
	}
	logger := opts.Vehicle.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	standCfg := physics.DefaultStandConfig()
	stand := physics.NewStand(standCfg)
	station := seat.NewLocalStation()

	v, err := vehicle.New(*cfg, vehicle.StandParts(stand, station, channel), opts.Vehicle)
	if err != nil {
		return nil, logging.WrapError(err, "failed to create vehicle %s", cfg.Name)
	}

	loop := host.NewLoop(cfg.Host, logger)
	if relay, ok := channel.(replication.PoseRelay); ok {
		loop.Add(&replication.PoseSync{Body: stand, Relay: relay, Owned: v.LocallyDriven})
	}
	loop.Add(v)
	loop.SetPhysics(stand.Step)

	return &Scene{
		stand:    stand,
		standCfg: standCfg,
		station:  station,
		vehicle:  v,
		loop:     loop,
		player:   opts.Player,
	}, nil
}

// Vehicle returns the simulated vehicle
func (scene *Scene) Vehicle() *vehicle.Vehicle { return scene.vehicle }

// Station returns the driver's seat
func (scene *Scene) Station() *seat.LocalStation { return scene.station }

// Loop returns the host loop advanced by the scene
func (scene *Scene) Loop() *host.Loop { return scene.loop }

// Type returns the scene type (required by Engo)
func (scene *Scene) Type() string {
	return "VehicleScene"
}

// Preload is called before the scene starts (required by Engo)
func (scene *Scene) Preload() {}

// Setup is called when the scene starts (required by Engo)
func (scene *Scene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	if world == nil {
		return
	}
	common.SetBackground(color.RGBA{200, 200, 200, 255})
	SetupInputBindings()

	renderSystem := &common.RenderSystem{}
	world.AddSystem(renderSystem)

	world.AddSystem(NewVehicleSystem(NewKeyboardInput(), scene.station, scene.loop, scene.player))

	origin := engo.Point{X: engo.GameWidth() / 2, Y: engo.GameHeight() / 2}
	scene.standDrawn = NewStandRenderer(scene.stand, scene.standCfg, scene.vehicle, origin, pixelsPerMetre)
	scene.standDrawn.Attach(renderSystem)
	world.AddSystem(scene.standDrawn)
}

// Exit is called when the scene is exiting (required by Engo)
func (scene *Scene) Exit() {
	if scene.station.IsOccupied() {
		scene.station.Vacate()
	}
}
