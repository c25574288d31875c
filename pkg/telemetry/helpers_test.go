package telemetry

import "github.com/opd-ai/go-vehicle/pkg/config"

func testInfluxConfig() config.InfluxConfig {
	cfg := config.DefaultConfig().Telemetry.Influx
	cfg.Enabled = true
	return cfg
}
