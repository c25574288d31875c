package engine

import (
	"math"
	"testing"
)

func TestTorqueCurve_Bounds(t *testing.T) {
	for rpm := -1000.0; rpm <= 10000; rpm += 7.3 {
		got := TorqueCurve(rpm, 8000)
		if got < 0 || got > 1 {
			t.Fatalf("TorqueCurve(%v) = %v, outside [0, 1]", rpm, got)
		}
	}
}

func TestTorqueCurve_Endpoints(t *testing.T) {
	if got := TorqueCurve(0, 8000); got != 0.095 {
		t.Errorf("TorqueCurve(0) = %v, want 0.095", got)
	}

	// sin(pi) is not exactly zero in float64
	want := math.Sin(math.Pi)*0.58 + math.Sin(math.Pi)*0.58 + 0.095
	if got := TorqueCurve(8000, 8000); math.Abs(got-want) > 1e-15 {
		t.Errorf("TorqueCurve(max) = %v, want %v", got, want)
	}
	if got := TorqueCurve(16000, 8000); math.Abs(got-want) > 1e-15 {
		t.Errorf("TorqueCurve above max = %v, want clamped %v", got, want)
	}
}

func TestTorqueCurve_KnownPoints(t *testing.T) {
	tests := []struct {
		rpm  float64
		want float64
	}{
		{2000, math.Sin(0.5*math.Pi)*0.58 + math.Sin(0.0625*math.Pi)*0.58 + 0.095},
		{4000, math.Sin(math.Sqrt(0.5)*math.Pi)*0.58 + math.Sin(0.25*math.Pi)*0.58 + 0.095},
	}
	for _, tt := range tests {
		got := TorqueCurve(tt.rpm, 8000)
		if math.Abs(got-math.Min(tt.want, 1)) > 1e-12 {
			t.Errorf("TorqueCurve(%v) = %v, want %v", tt.rpm, got, tt.want)
		}
	}
}

func TestTorqueCurve_ZeroMax(t *testing.T) {
	if got := TorqueCurve(500, 0); got != 0.095 {
		t.Errorf("TorqueCurve with zero max = %v, want 0.095", got)
	}
}
