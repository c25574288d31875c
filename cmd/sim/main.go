// cmd/sim/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/event"
	"github.com/opd-ai/go-vehicle/pkg/health"
	"github.com/opd-ai/go-vehicle/pkg/host"
	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/opd-ai/go-vehicle/pkg/network"
	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/replication"
	"github.com/opd-ai/go-vehicle/pkg/seat"
	"github.com/opd-ai/go-vehicle/pkg/telemetry"
	"github.com/opd-ai/go-vehicle/pkg/vehicle"
)

func main() {
	logger := logging.NewLogger()
	ctx := logging.WithSessionID(context.Background(), "")

	configPath := flag.String("config", "vehicle.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	duration := flag.Duration("duration", 30*time.Second, "Simulated run time, 0 runs until interrupted")
	scriptName := flag.String("script", "accelerate", "Driver script: accelerate, reverse, slalom or idle")
	peer := flag.String("peer", "", "UDP address to mirror the drive state to (overrides config)")
	listen := flag.String("listen", "", "UDP address to receive drive state on; runs as observer (overrides config)")
	realtime := flag.Bool("realtime", true, "Pace frames with the wall clock")
	backupPath := flag.String("backup", "telemetry.lp.gz", "Telemetry backup file used when InfluxDB is unreachable")
	healthAddr := flag.String("health", "", "Address to serve /health and /ready on, empty disables")
	flag.Parse()

	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	cfg, err := loadConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}
	if *peer != "" {
		cfg.Network.PeerAddress = *peer
	}
	if *listen != "" {
		cfg.Network.ListenAddress = *listen
	}

	script, err := lookupScript(*scriptName)
	if err != nil {
		logger.Error(ctx, "Invalid script", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		script:     script,
		duration:   *duration,
		realtime:   *realtime,
		backupPath: *backupPath,
		healthAddr: *healthAddr,
	}
	if err := run(ctx, logger, cfg, opts); err != nil {
		logger.Error(ctx, "Simulation failed", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Simulation stopped")
}

func loadConfig(ctx context.Context, logger *logging.Logger, path string) (*config.VehicleConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		return config.LoadConfig("")
	}
	return config.LoadConfig(path)
}

type runOptions struct {
	script     Script
	duration   time.Duration
	realtime   bool
	backupPath string
	healthAddr string
}

func run(ctx context.Context, logger *logging.Logger, cfg *config.VehicleConfig, opts runOptions) error {
	observer := cfg.Network.ListenAddress != ""
	duration := opts.duration
	realtime := opts.realtime || observer

	channel, closeChannel, err := openChannel(ctx, logger, cfg.Network)
	if err != nil {
		return err
	}
	defer closeChannel()

	sink := openTelemetry(ctx, logger, cfg.Telemetry, opts.backupPath)
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn(ctx, "Failed to close telemetry", "error", err.Error())
		}
	}()

	bus := event.NewEventBus()
	subscribeLogging(ctx, bus, logger)

	stand := physics.NewStand(physics.DefaultStandConfig())
	station := seat.NewLocalStation()
	v, err := vehicle.New(*cfg, vehicle.StandParts(stand, station, channel), vehicle.Options{
		Bus:    bus,
		Sink:   sink,
		Logger: logger,
	})
	if err != nil {
		return logging.WrapError(err, "failed to create vehicle %s", cfg.Name)
	}

	loop := host.NewLoop(cfg.Host, logger)
	if observer {
		station.Seat(&seat.Player{ID: "remote", Name: "remote driver"})
	} else {
		loop.Add(&scriptDriver{station: station, script: opts.script})
		station.Seat(&seat.Player{ID: "sim", Name: "scripted driver", IsLocal: true})
	}
	if relay, ok := channel.(replication.PoseRelay); ok {
		loop.Add(&replication.PoseSync{Body: stand, Relay: relay, Owned: v.LocallyDriven})
	}
	loop.Add(v)
	loop.SetPhysics(stand.Step)

	if opts.healthAddr != "" {
		stopHealth := serveHealth(ctx, logger, opts.healthAddr, loop, channel)
		defer stopHealth()
	}

	if duration > 0 && realtime {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger.Info(ctx, "Simulation started",
		"vehicle", cfg.Name,
		"observer", observer,
		"duration", duration,
	)

	if realtime {
		if err := loop.Run(ctx); err != nil {
			return err
		}
	} else {
		runFast(ctx, loop, duration)
	}

	station.Vacate()
	stats := loop.Stats()
	_, smoothed := v.Speed()
	gear, label := v.Gear()
	logger.Info(ctx, "Simulation summary",
		"frames", stats.Frames,
		"fixed_steps", stats.FixedSteps,
		"dropped", stats.Dropped,
		"sim_time", v.Now(),
		"smoothed_speed", smoothed,
		"gear", gear,
		"gear_label", label,
		"distance", stand.Position().Len(),
	)
	return nil
}

// serveHealth exposes liveness and readiness probes until the returned
// function is called.
func serveHealth(ctx context.Context, logger *logging.Logger, addr string, loop *host.Loop, channel replication.Channel) func() {
	checker := health.NewHealthChecker()
	checker.AddCheck(health.NewLoopHealthCheck(loop.Progress, 2*time.Second))
	checker.AddCheck(health.NewMemoryHealthCheck(500, nil))
	if ch, ok := channel.(*network.StateChannel); ok && ch.Breaker() != nil {
		checker.AddCheck(health.NewBreakerHealthCheck("peer", ch.Breaker().State))
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      checker.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Starting health check server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "Failed to stop health check server", "error", err.Error())
		}
	}
}

// runFast advances frames back to back until duration of simulated time
// has passed. A zero duration runs until ctx is done.
func runFast(ctx context.Context, loop *host.Loop, duration time.Duration) {
	frame := loop.FrameInterval()
	var elapsed time.Duration
	for duration <= 0 || elapsed < duration {
		if ctx.Err() != nil {
			return
		}
		loop.Frame(frame)
		elapsed += frame
	}
}

func openChannel(ctx context.Context, logger *logging.Logger, cfg config.NetworkConfig) (replication.Channel, func(), error) {
	switch {
	case cfg.ListenAddress != "":
		ch, err := network.Listen(ctx, cfg.ListenAddress, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { closeChannel(ctx, logger, ch) }, nil
	case cfg.PeerAddress != "":
		ch, err := network.Dial(ctx, cfg.PeerAddress, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { closeChannel(ctx, logger, ch) }, nil
	default:
		return replication.NewShared(), func() {}, nil
	}
}

func closeChannel(ctx context.Context, logger *logging.Logger, ch *network.StateChannel) {
	logger.Info(ctx, "State channel closing",
		"received", ch.Received(),
		"dropped", ch.Dropped(),
		"failed_publishes", ch.Failed(),
	)
	if err := ch.Close(); err != nil {
		logger.Warn(ctx, "Failed to close state channel", "error", err.Error())
	}
}

// openTelemetry builds the configured sinks behind one throttle. An
// unreachable InfluxDB falls back to a gzipped line protocol file.
func openTelemetry(ctx context.Context, logger *logging.Logger, cfg config.TelemetryConfig, backupPath string) *telemetry.Throttled {
	var sinks telemetry.Multi
	if cfg.Log {
		sinks = append(sinks, telemetry.NewLogSink(logger))
	}
	if cfg.OTel {
		otelSink, err := telemetry.NewOTelSink(nil)
		if err != nil {
			logger.Warn(ctx, "OpenTelemetry sink disabled", "error", err.Error())
		} else {
			sinks = append(sinks, otelSink)
		}
	}
	if cfg.Influx.Enabled {
		influxSink, err := telemetry.NewInfluxSink(ctx, cfg.Influx, logger)
		if err != nil {
			logger.Warn(ctx, "InfluxDB unreachable, writing telemetry to backup file",
				"backup_path", backupPath,
				"error", err.Error(),
			)
			backup, backupErr := telemetry.OpenBackupSink(backupPath, logger)
			if backupErr != nil {
				logger.Error(ctx, "Telemetry backup disabled", backupErr)
			} else {
				sinks = append(sinks, backup)
			}
		} else {
			sinks = append(sinks, influxSink)
		}
	}
	return telemetry.NewThrottled(sinks, cfg.Interval)
}

func subscribeLogging(ctx context.Context, bus *event.Bus, logger *logging.Logger) {
	bus.Subscribe(event.GearChanged, func(e event.Event) {
		if g, ok := e.(*event.GearEvent); ok {
			logger.Info(ctx, "Gear changed", "from", g.From, "to", g.To, "label", g.Label)
		}
	})
	bus.Subscribe(event.WheelSlipChanged, func(e event.Event) {
		if s, ok := e.(*event.WheelSlipEvent); ok {
			logger.Debug(ctx, "Wheel slip changed", "wheel", s.Wheel, "slipping", s.Slipping)
		}
	})
	bus.Subscribe(event.DriverLeft, func(e event.Event) {
		if d, ok := e.(*event.DriverEvent); ok {
			logger.Info(ctx, "Driver left", "player_id", d.PlayerID)
		}
	})
}
