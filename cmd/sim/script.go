package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/seat"
)

// Script returns the driver input at t seconds into the run
type Script func(t float64) seat.InputSample

var scripts = map[string]Script{
	"accelerate": func(t float64) seat.InputSample {
		return desktop(0, 1, false)
	},
	// reverse brakes to a stop, which flips the gearbox into reverse, and
	// keeps backing up.
	"reverse": func(t float64) seat.InputSample {
		return desktop(0, -1, false)
	},
	// slalom drives forward, alternating full lock every two seconds, and
	// pulls the handbrake for the last second of every ten.
	"slalom": func(t float64) seat.InputSample {
		steer := 1.0
		if math.Mod(t, 4) >= 2 {
			steer = -1
		}
		return desktop(steer, 1, math.Mod(t, 10) >= 9)
	},
	"idle": func(t float64) seat.InputSample {
		return desktop(0, 0, false)
	},
}

func desktop(x, y float64, handbrake bool) seat.InputSample {
	return seat.InputSample{Move: mgl64.Vec2{x, y}, Jump: handbrake, Device: seat.DeviceDesktop}
}

// lookupScript returns the named script
func lookupScript(name string) (Script, error) {
	s, ok := scripts[name]
	if !ok {
		return nil, fmt.Errorf("unknown script %q (have %v)", name, scriptNames())
	}
	return s, nil
}

func scriptNames() []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scriptDriver feeds a script into the seat once per frame
type scriptDriver struct {
	station *seat.LocalStation
	script  Script
	elapsed float64
}

func (d *scriptDriver) OnVariableStep(dt float64) {
	d.elapsed += dt
	d.station.SetInput(d.script(d.elapsed))
}

func (d *scriptDriver) OnFixedStep(dt float64) {}
