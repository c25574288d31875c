// cmd/client/main.go
package main

import (
	"context"
	"flag"
	"os"

	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/event"
	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/opd-ai/go-vehicle/pkg/network"
	"github.com/opd-ai/go-vehicle/pkg/replication"
	engorender "github.com/opd-ai/go-vehicle/pkg/render/engo"
	"github.com/opd-ai/go-vehicle/pkg/seat"
	"github.com/opd-ai/go-vehicle/pkg/telemetry"
	"github.com/opd-ai/go-vehicle/pkg/validation"
	"github.com/opd-ai/go-vehicle/pkg/vehicle"
)

func main() {
	logger := logging.NewLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := flag.String("config", "vehicle.json", "Path to configuration file")
	playerName := flag.String("name", "Player", "Player name")
	peer := flag.String("peer", "", "UDP address to mirror the drive state to")
	listen := flag.String("listen", "", "UDP address to receive drive state on; runs as observer")
	fullscreen := flag.Bool("fullscreen", false, "Run in fullscreen mode")
	width := flag.Int("width", 1024, "Window width")
	height := flag.Int("height", 768, "Window height")
	flag.Parse()

	name, err := validation.ValidatePlayerName(*playerName)
	if err != nil {
		logger.Error(ctx, "Invalid player name", err, "name", *playerName)
		os.Exit(1)
	}

	var cfg *config.VehicleConfig
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", *configPath,
		)
		cfg, err = config.LoadConfig("")
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}

	var channel replication.Channel
	switch {
	case *listen != "":
		ch, err := network.Listen(ctx, *listen, cfg.Network, logger)
		if err != nil {
			logger.Error(ctx, "Failed to listen for drive state", err)
			os.Exit(1)
		}
		defer ch.Close()
		channel = ch
	case *peer != "":
		ch, err := network.Dial(ctx, *peer, cfg.Network, logger)
		if err != nil {
			logger.Error(ctx, "Failed to dial peer", err)
			os.Exit(1)
		}
		defer ch.Close()
		channel = ch
	}

	bus := event.NewEventBus()
	bus.Subscribe(event.DriverEntered, func(e event.Event) {
		if d, ok := e.(*event.DriverEvent); ok {
			logger.Info(ctx, "Driver entered", "player_id", d.PlayerID, "local", d.Local)
		}
	})
	bus.Subscribe(event.GearChanged, func(e event.Event) {
		if g, ok := e.(*event.GearEvent); ok {
			logger.Debug(ctx, "Gear changed", "label", g.Label)
		}
	})

	var player *seat.Player
	if *listen == "" {
		player = &seat.Player{ID: logging.GenerateSessionID(), Name: name, IsLocal: true}
	}

	scene, err := engorender.NewScene(cfg, engorender.SceneOptions{
		Channel: channel,
		Player:  player,
		Vehicle: vehicle.Options{
			Bus:    bus,
			Sink:   telemetry.NewThrottled(telemetry.NewLogSink(logger), cfg.Telemetry.Interval),
			Logger: logger,
		},
	})
	if err != nil {
		logger.Error(ctx, "Failed to create scene", err)
		os.Exit(1)
	}
	if player == nil {
		scene.Station().Seat(&seat.Player{ID: "remote", Name: "remote driver"})
	}

	opts := engo.RunOptions{
		Title:      "Go Vehicle",
		Width:      *width,
		Height:     *height,
		Fullscreen: *fullscreen,
		VSync:      true,
	}
	engo.Run(opts, scene)
}
