// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate when a tunable is out of range.
var ErrInvalidConfig = errors.New("invalid vehicle configuration")

// VehicleConfig contains every tunable of a vehicle instance. It is loaded
// once and passed by value into constructors; nothing mutates it afterwards.
type VehicleConfig struct {
	Name      string          `json:"name" mapstructure:"name"`
	Engine    EngineConfig    `json:"engine" mapstructure:"engine"`
	Gearbox   GearboxConfig   `json:"gearbox" mapstructure:"gearbox"`
	Control   ControlConfig   `json:"control" mapstructure:"control"`
	Steering  SteeringConfig  `json:"steering" mapstructure:"steering"`
	Braking   BrakingConfig   `json:"braking" mapstructure:"braking"`
	Chassis   ChassisConfig   `json:"chassis" mapstructure:"chassis"`
	Wheel     WheelConfig     `json:"wheel" mapstructure:"wheel"`
	Host      HostConfig      `json:"host" mapstructure:"host"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	Network   NetworkConfig   `json:"network" mapstructure:"network"`
}

// EngineConfig contains the engine state machine tunables
type EngineConfig struct {
	IdleRPM               float64       `json:"idleRpm" mapstructure:"idleRpm"`
	MaxRPM                float64       `json:"maxRpm" mapstructure:"maxRpm"`
	StartupDuration       time.Duration `json:"startupDuration" mapstructure:"startupDuration"`
	AccelerationThreshold float64       `json:"accelerationThreshold" mapstructure:"accelerationThreshold"`
	RPMSlewPerTick        float64       `json:"rpmSlewPerTick" mapstructure:"rpmSlewPerTick"`
	ThrottleRPMDivisor    float64       `json:"throttleRpmDivisor" mapstructure:"throttleRpmDivisor"`
}

// GearboxConfig contains the ratio table and shift thresholds.
// Gear indices are 1-based into Ratios.
type GearboxConfig struct {
	Ratios            []float64 `json:"ratios" mapstructure:"ratios"`
	GearFactor        float64   `json:"gearFactor" mapstructure:"gearFactor"`
	DifferentialRatio float64   `json:"differentialRatio" mapstructure:"differentialRatio"`
	MinIndex          int       `json:"minIndex" mapstructure:"minIndex"`
	MaxIndex          int       `json:"maxIndex" mapstructure:"maxIndex"`
	ReverseIndex      int       `json:"reverseIndex" mapstructure:"reverseIndex"`
	InitialIndex      int       `json:"initialIndex" mapstructure:"initialIndex"`
	UpshiftFraction   float64   `json:"upshiftFraction" mapstructure:"upshiftFraction"`
	DownshiftFraction float64   `json:"downshiftFraction" mapstructure:"downshiftFraction"`
}

// ControlConfig contains the input mapping tunables for both device classes
type ControlConfig struct {
	ThrottleStep         float64 `json:"throttleStep" mapstructure:"throttleStep"`
	SteeringStep         float64 `json:"steeringStep" mapstructure:"steeringStep"`
	SteeringRelaxDivisor float64 `json:"steeringRelaxDivisor" mapstructure:"steeringRelaxDivisor"`
	AxisThreshold        float64 `json:"axisThreshold" mapstructure:"axisThreshold"`
	NearZero             float64 `json:"nearZero" mapstructure:"nearZero"`
	DirectionFlipSpeed   float64 `json:"directionFlipSpeed" mapstructure:"directionFlipSpeed"`
	ReverseThrottleFloor float64 `json:"reverseThrottleFloor" mapstructure:"reverseThrottleFloor"`
	VRSteeringRate       float64 `json:"vrSteeringRate" mapstructure:"vrSteeringRate"`
	CurvedSteering       bool    `json:"curvedSteering" mapstructure:"curvedSteering"`
	CurveDivisor         float64 `json:"curveDivisor" mapstructure:"curveDivisor"`
	CurveScale           float64 `json:"curveScale" mapstructure:"curveScale"`
}

// SteeringConfig contains the front axle geometry options
type SteeringConfig struct {
	MaxSteerAngle float64 `json:"maxSteerAngle" mapstructure:"maxSteerAngle"`
	UseAckermann  bool    `json:"useAckermann" mapstructure:"useAckermann"`
}

// BrakingConfig contains torque limits applied to the wheel colliders
type BrakingConfig struct {
	MotorMaxTorque   float64 `json:"motorMaxTorque" mapstructure:"motorMaxTorque"`
	MaxBrakeTorque   float64 `json:"maxBrakeTorque" mapstructure:"maxBrakeTorque"`
	HandbrakeTorque  float64 `json:"handbrakeTorque" mapstructure:"handbrakeTorque"`
	SpeedBrakeFactor float64 `json:"speedBrakeFactor" mapstructure:"speedBrakeFactor"`
}

// ChassisConfig contains the parked-body behaviour and speed smoothing
type ChassisConfig struct {
	ParkedLinearDrag  float64 `json:"parkedLinearDrag" mapstructure:"parkedLinearDrag"`
	ParkedAngularDrag float64 `json:"parkedAngularDrag" mapstructure:"parkedAngularDrag"`
	SpeedSamples      int     `json:"speedSamples" mapstructure:"speedSamples"`
}

// WheelConfig contains slip detection limits and audio feed scaling
type WheelConfig struct {
	ForwardSlipLimit float64 `json:"forwardSlipLimit" mapstructure:"forwardSlipLimit"`
	LateralSlipLimit float64 `json:"lateralSlipLimit" mapstructure:"lateralSlipLimit"`
	ScreechFullSpeed float64 `json:"screechFullSpeed" mapstructure:"screechFullSpeed"`
}

// HostConfig contains the scheduler cadence
type HostConfig struct {
	FixedStep             time.Duration `json:"fixedStep" mapstructure:"fixedStep"`
	FrameRate             int           `json:"frameRate" mapstructure:"frameRate"`
	MaxFixedStepsPerFrame int           `json:"maxFixedStepsPerFrame" mapstructure:"maxFixedStepsPerFrame"`
}

// TelemetryConfig selects and tunes the telemetry sinks
type TelemetryConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	Log      bool          `json:"log" mapstructure:"log"`
	OTel     bool          `json:"otel" mapstructure:"otel"`
	Influx   InfluxConfig  `json:"influx" mapstructure:"influx"`
}

// InfluxConfig contains the InfluxDB connection used by the telemetry sink
type InfluxConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
	Org     string `json:"org" mapstructure:"org"`
	Bucket  string `json:"bucket" mapstructure:"bucket"`
}

// NetworkConfig contains the replication transport settings
type NetworkConfig struct {
	ListenAddress                     string        `json:"listenAddress" mapstructure:"listenAddress"`
	PeerAddress                       string        `json:"peerAddress" mapstructure:"peerAddress"`
	CircuitBreakerMaxRequests         int           `json:"circuitBreakerMaxRequests" mapstructure:"circuitBreakerMaxRequests"`
	CircuitBreakerInterval            time.Duration `json:"circuitBreakerInterval" mapstructure:"circuitBreakerInterval"`
	CircuitBreakerTimeout             time.Duration `json:"circuitBreakerTimeout" mapstructure:"circuitBreakerTimeout"`
	CircuitBreakerMaxConsecutiveFails int           `json:"circuitBreakerMaxConsecutiveFails" mapstructure:"circuitBreakerMaxConsecutiveFails"`
	MaxDatagramsPerSecond             int           `json:"maxDatagramsPerSecond" mapstructure:"maxDatagramsPerSecond"`
}

// DefaultConfig returns the stock tuning of the vehicle
func DefaultConfig() *VehicleConfig {
	return &VehicleConfig{
		Name: "car",
		Engine: EngineConfig{
			IdleRPM:               800,
			MaxRPM:                8000,
			StartupDuration:       3 * time.Second,
			AccelerationThreshold: 0.05,
			RPMSlewPerTick:        100,
			ThrottleRPMDivisor:    16,
		},
		Gearbox: GearboxConfig{
			Ratios:            []float64{3, 3, 2, 1.5, 1, 0.5},
			GearFactor:        3.75,
			DifferentialRatio: 0.65,
			MinIndex:          2,
			MaxIndex:          6,
			ReverseIndex:      1,
			InitialIndex:      2,
			UpshiftFraction:   0.7,
			DownshiftFraction: 0.5,
		},
		Control: ControlConfig{
			ThrottleStep:         0.1,
			SteeringStep:         0.1,
			SteeringRelaxDivisor: 5,
			AxisThreshold:        0.5,
			NearZero:             0.01,
			DirectionFlipSpeed:   1,
			ReverseThrottleFloor: -0.8,
			VRSteeringRate:       1.5,
			CurvedSteering:       true,
			CurveDivisor:         0.685,
			CurveScale:           0.113,
		},
		Steering: SteeringConfig{
			MaxSteerAngle: 30,
			UseAckermann:  true,
		},
		Braking: BrakingConfig{
			MotorMaxTorque:   2000,
			MaxBrakeTorque:   1000,
			HandbrakeTorque:  1000,
			SpeedBrakeFactor: 2,
		},
		Chassis: ChassisConfig{
			ParkedLinearDrag:  15,
			ParkedAngularDrag: 30,
			SpeedSamples:      10,
		},
		Wheel: WheelConfig{
			ForwardSlipLimit: 1,
			LateralSlipLimit: 0.2,
			ScreechFullSpeed: 20,
		},
		Host: HostConfig{
			FixedStep:             20 * time.Millisecond,
			FrameRate:             60,
			MaxFixedStepsPerFrame: 5,
		},
		Telemetry: TelemetryConfig{
			Interval: 250 * time.Millisecond,
			Log:      true,
			Influx: InfluxConfig{
				URL:    "http://localhost:8086",
				Org:    "vehicle",
				Bucket: "telemetry",
			},
		},
		Network: NetworkConfig{
			CircuitBreakerMaxRequests:         3,
			CircuitBreakerInterval:            60 * time.Second,
			CircuitBreakerTimeout:             5 * time.Second,
			CircuitBreakerMaxConsecutiveFails: 5,
			MaxDatagramsPerSecond:             240,
		},
	}
}

// LoadConfig loads a configuration file on top of the defaults. The format
// follows the file extension (json, yaml, toml). Environment variables with
// the VEHICLE_ prefix override file values, e.g. VEHICLE_ENGINE_MAXRPM.
func LoadConfig(path string) (*VehicleConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg VehicleConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig saves a configuration to a JSON file
func SaveConfig(cfg *VehicleConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VEHICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("name", d.Name)

	v.SetDefault("engine.idleRpm", d.Engine.IdleRPM)
	v.SetDefault("engine.maxRpm", d.Engine.MaxRPM)
	v.SetDefault("engine.startupDuration", d.Engine.StartupDuration)
	v.SetDefault("engine.accelerationThreshold", d.Engine.AccelerationThreshold)
	v.SetDefault("engine.rpmSlewPerTick", d.Engine.RPMSlewPerTick)
	v.SetDefault("engine.throttleRpmDivisor", d.Engine.ThrottleRPMDivisor)

	v.SetDefault("gearbox.ratios", d.Gearbox.Ratios)
	v.SetDefault("gearbox.gearFactor", d.Gearbox.GearFactor)
	v.SetDefault("gearbox.differentialRatio", d.Gearbox.DifferentialRatio)
	v.SetDefault("gearbox.minIndex", d.Gearbox.MinIndex)
	v.SetDefault("gearbox.maxIndex", d.Gearbox.MaxIndex)
	v.SetDefault("gearbox.reverseIndex", d.Gearbox.ReverseIndex)
	v.SetDefault("gearbox.initialIndex", d.Gearbox.InitialIndex)
	v.SetDefault("gearbox.upshiftFraction", d.Gearbox.UpshiftFraction)
	v.SetDefault("gearbox.downshiftFraction", d.Gearbox.DownshiftFraction)

	v.SetDefault("control.throttleStep", d.Control.ThrottleStep)
	v.SetDefault("control.steeringStep", d.Control.SteeringStep)
	v.SetDefault("control.steeringRelaxDivisor", d.Control.SteeringRelaxDivisor)
	v.SetDefault("control.axisThreshold", d.Control.AxisThreshold)
	v.SetDefault("control.nearZero", d.Control.NearZero)
	v.SetDefault("control.directionFlipSpeed", d.Control.DirectionFlipSpeed)
	v.SetDefault("control.reverseThrottleFloor", d.Control.ReverseThrottleFloor)
	v.SetDefault("control.vrSteeringRate", d.Control.VRSteeringRate)
	v.SetDefault("control.curvedSteering", d.Control.CurvedSteering)
	v.SetDefault("control.curveDivisor", d.Control.CurveDivisor)
	v.SetDefault("control.curveScale", d.Control.CurveScale)

	v.SetDefault("steering.maxSteerAngle", d.Steering.MaxSteerAngle)
	v.SetDefault("steering.useAckermann", d.Steering.UseAckermann)

	v.SetDefault("braking.motorMaxTorque", d.Braking.MotorMaxTorque)
	v.SetDefault("braking.maxBrakeTorque", d.Braking.MaxBrakeTorque)
	v.SetDefault("braking.handbrakeTorque", d.Braking.HandbrakeTorque)
	v.SetDefault("braking.speedBrakeFactor", d.Braking.SpeedBrakeFactor)

	v.SetDefault("chassis.parkedLinearDrag", d.Chassis.ParkedLinearDrag)
	v.SetDefault("chassis.parkedAngularDrag", d.Chassis.ParkedAngularDrag)
	v.SetDefault("chassis.speedSamples", d.Chassis.SpeedSamples)

	v.SetDefault("wheel.forwardSlipLimit", d.Wheel.ForwardSlipLimit)
	v.SetDefault("wheel.lateralSlipLimit", d.Wheel.LateralSlipLimit)
	v.SetDefault("wheel.screechFullSpeed", d.Wheel.ScreechFullSpeed)

	v.SetDefault("host.fixedStep", d.Host.FixedStep)
	v.SetDefault("host.frameRate", d.Host.FrameRate)
	v.SetDefault("host.maxFixedStepsPerFrame", d.Host.MaxFixedStepsPerFrame)

	v.SetDefault("telemetry.interval", d.Telemetry.Interval)
	v.SetDefault("telemetry.log", d.Telemetry.Log)
	v.SetDefault("telemetry.otel", d.Telemetry.OTel)
	v.SetDefault("telemetry.influx.enabled", d.Telemetry.Influx.Enabled)
	v.SetDefault("telemetry.influx.url", d.Telemetry.Influx.URL)
	v.SetDefault("telemetry.influx.token", d.Telemetry.Influx.Token)
	v.SetDefault("telemetry.influx.org", d.Telemetry.Influx.Org)
	v.SetDefault("telemetry.influx.bucket", d.Telemetry.Influx.Bucket)

	v.SetDefault("network.listenAddress", d.Network.ListenAddress)
	v.SetDefault("network.peerAddress", d.Network.PeerAddress)
	v.SetDefault("network.circuitBreakerMaxRequests", d.Network.CircuitBreakerMaxRequests)
	v.SetDefault("network.circuitBreakerInterval", d.Network.CircuitBreakerInterval)
	v.SetDefault("network.circuitBreakerTimeout", d.Network.CircuitBreakerTimeout)
	v.SetDefault("network.circuitBreakerMaxConsecutiveFails", d.Network.CircuitBreakerMaxConsecutiveFails)
	v.SetDefault("network.maxDatagramsPerSecond", d.Network.MaxDatagramsPerSecond)

	return v
}

// Validate checks the configuration for values the simulation cannot run with
func (c *VehicleConfig) Validate() error {
	if c.Engine.MaxRPM <= 0 {
		return fmt.Errorf("%w: engine.maxRpm must be positive, got %v", ErrInvalidConfig, c.Engine.MaxRPM)
	}
	if c.Engine.IdleRPM < 0 || c.Engine.IdleRPM > c.Engine.MaxRPM {
		return fmt.Errorf("%w: engine.idleRpm must be within [0, maxRpm], got %v", ErrInvalidConfig, c.Engine.IdleRPM)
	}
	if c.Engine.RPMSlewPerTick <= 0 {
		return fmt.Errorf("%w: engine.rpmSlewPerTick must be positive", ErrInvalidConfig)
	}
	if c.Engine.ThrottleRPMDivisor <= 0 {
		return fmt.Errorf("%w: engine.throttleRpmDivisor must be positive", ErrInvalidConfig)
	}

	g := c.Gearbox
	if g.MinIndex < 1 || g.MaxIndex > len(g.Ratios) || g.MinIndex > g.MaxIndex {
		return fmt.Errorf("%w: gearbox index range [%d, %d] does not fit %d ratios",
			ErrInvalidConfig, g.MinIndex, g.MaxIndex, len(g.Ratios))
	}
	if g.InitialIndex < g.MinIndex || g.InitialIndex > g.MaxIndex {
		return fmt.Errorf("%w: gearbox.initialIndex %d outside [%d, %d]",
			ErrInvalidConfig, g.InitialIndex, g.MinIndex, g.MaxIndex)
	}
	if g.DownshiftFraction >= g.UpshiftFraction {
		return fmt.Errorf("%w: gearbox.downshiftFraction must be below upshiftFraction", ErrInvalidConfig)
	}

	if c.Steering.MaxSteerAngle <= 0 || c.Steering.MaxSteerAngle >= 90 {
		return fmt.Errorf("%w: steering.maxSteerAngle must be within (0, 90), got %v",
			ErrInvalidConfig, c.Steering.MaxSteerAngle)
	}
	if c.Control.CurveDivisor == 0 {
		return fmt.Errorf("%w: control.curveDivisor must not be zero", ErrInvalidConfig)
	}
	if c.Control.SteeringRelaxDivisor <= 0 {
		return fmt.Errorf("%w: control.steeringRelaxDivisor must be positive", ErrInvalidConfig)
	}
	if c.Chassis.SpeedSamples < 1 {
		return fmt.Errorf("%w: chassis.speedSamples must be at least 1", ErrInvalidConfig)
	}
	if c.Host.FixedStep <= 0 {
		return fmt.Errorf("%w: host.fixedStep must be positive", ErrInvalidConfig)
	}
	if c.Host.MaxFixedStepsPerFrame < 1 {
		return fmt.Errorf("%w: host.maxFixedStepsPerFrame must be at least 1", ErrInvalidConfig)
	}
	if c.Network.MaxDatagramsPerSecond < 0 {
		return fmt.Errorf("%w: network.maxDatagramsPerSecond must not be negative", ErrInvalidConfig)
	}
	if c.Telemetry.Influx.Enabled && c.Telemetry.Influx.URL == "" {
		return fmt.Errorf("%w: telemetry.influx.url is required when influx is enabled", ErrInvalidConfig)
	}

	return nil
}
