package gearbox

import (
	"math/rand"
	"testing"

	"github.com/opd-ai/go-vehicle/pkg/config"
)

func newTestGearbox() *Gearbox {
	cfg := config.DefaultConfig()
	return New(cfg.Gearbox, cfg.Engine.MaxRPM)
}

func TestNew_InitialGear(t *testing.T) {
	g := newTestGearbox()
	if g.Index() != 2 {
		t.Errorf("Index() = %d, want 2", g.Index())
	}
	if g.Ratio() != 3 {
		t.Errorf("Ratio() = %v, want 3", g.Ratio())
	}
}

func TestEquivalentRPM(t *testing.T) {
	g := newTestGearbox()
	// (3.75 * 3 + 0.65) = 11.9
	if got := g.EquivalentRPM(-100); got != 1190 {
		t.Errorf("EquivalentRPM(-100) = %v, want 1190", got)
	}
}

func TestUpdate_ShiftRule(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		rpm       float64
		wantShift int
		wantIndex int
	}{
		{"upshift above 0.7", 2, 5700, 1, 3},
		{"hold inside band", 3, 5000, 0, 3},
		{"downshift below 0.5", 4, 3900, -1, 3},
		{"no upshift at max", 6, 7900, 0, 6},
		{"no downshift at min", 2, 0, 0, 2},
		{"exactly 0.7 holds", 3, 5600, 0, 3},
		{"exactly 0.5 holds", 3, 4000, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGearbox()
			g.index = tt.start
			if got := g.Update(tt.rpm); got != tt.wantShift {
				t.Errorf("Update(%v) = %d, want %d", tt.rpm, got, tt.wantShift)
			}
			if g.Index() != tt.wantIndex {
				t.Errorf("Index() = %d, want %d", g.Index(), tt.wantIndex)
			}
		})
	}
}

func TestUpdate_OscillationStaysInBounds(t *testing.T) {
	g := newTestGearbox()
	rng := rand.New(rand.NewSource(7))
	values := []float64{3999, 5601, 4000, 5600, 0, 8000, 3999.9, 5600.1}

	for i := 0; i < 10000; i++ {
		var rpm float64
		if i%2 == 0 {
			rpm = values[rng.Intn(len(values))]
		} else {
			rpm = rng.Float64() * 10000
		}
		before := g.Index()
		g.Update(rpm)
		after := g.Index()

		if after < 2 || after > 6 {
			t.Fatalf("tick %d: index %d left [2, 6]", i, after)
		}
		if d := after - before; d > 1 || d < -1 {
			t.Fatalf("tick %d: shifted %d steps in one tick", i, d)
		}
	}
}

func TestLabel(t *testing.T) {
	g := newTestGearbox()
	if got := g.Label(-1); got != "R" {
		t.Errorf("Label(-1) = %q, want R", got)
	}
	if got := g.Label(1); got != "D1" {
		t.Errorf("Label(1) = %q, want D1", got)
	}
	g.Update(7000)
	if got := g.Label(0); got != "D2" {
		t.Errorf("Label(0) = %q, want D2", got)
	}
}

func TestReset(t *testing.T) {
	g := newTestGearbox()
	g.Update(7000)
	g.Update(7000)
	g.Reset()
	if g.Index() != 2 {
		t.Errorf("Index() after Reset = %d, want 2", g.Index())
	}
}
