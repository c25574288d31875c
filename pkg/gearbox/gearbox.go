// Package gearbox implements the automatic gearbox: a ratio table with a
// hysteresis band between the downshift and upshift thresholds.
package gearbox

import (
	"fmt"
	"math"

	"github.com/opd-ai/go-vehicle/pkg/config"
)

// Gearbox holds the current gear. Indices are 1-based into the ratio table
// and always stay within [MinIndex, MaxIndex].
type Gearbox struct {
	config config.GearboxConfig
	maxRPM float64
	index  int
}

// New creates a gearbox in its initial gear. maxRPM is the engine redline
// the shift thresholds are fractions of.
func New(cfg config.GearboxConfig, maxRPM float64) *Gearbox {
	g := &Gearbox{config: cfg, maxRPM: maxRPM}
	g.Reset()
	return g
}

// Reset selects the initial gear
func (g *Gearbox) Reset() {
	g.index = g.clampIndex(g.config.InitialIndex)
}

// Index returns the current gear index
func (g *Gearbox) Index() int {
	return g.index
}

// Ratio returns the ratio of the current gear
func (g *Gearbox) Ratio() float64 {
	i := g.index - 1
	if i < 0 || i >= len(g.config.Ratios) {
		return 0
	}
	return g.config.Ratios[i]
}

// EquivalentRPM converts a wheel rpm into engine rpm through the current
// gear and the differential.
func (g *Gearbox) EquivalentRPM(wheelRPM float64) float64 {
	return math.Abs(wheelRPM) * (g.config.GearFactor*g.Ratio() + g.config.DifferentialRatio)
}

// Update applies the shift rule for one fixed step and returns the gear
// change: +1, -1 or 0. At most one step is taken per call.
func (g *Gearbox) Update(wheelEquivalentRPM float64) int {
	switch {
	case wheelEquivalentRPM > g.config.UpshiftFraction*g.maxRPM && g.index < g.config.MaxIndex:
		g.index++
		return 1
	case wheelEquivalentRPM < g.config.DownshiftFraction*g.maxRPM && g.index > g.config.MinIndex:
		g.index--
		return -1
	}
	return 0
}

// Label returns the indicator text: "R" in reverse, otherwise "D" followed
// by the forward gear number.
func (g *Gearbox) Label(direction int) string {
	if direction < 0 {
		return "R"
	}
	return fmt.Sprintf("D%d", g.index-1)
}

func (g *Gearbox) clampIndex(i int) int {
	if i < g.config.MinIndex {
		return g.config.MinIndex
	}
	if i > g.config.MaxIndex {
		return g.config.MaxIndex
	}
	return i
}
