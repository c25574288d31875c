// pkg/engine/torque.go
package engine

import (
	"math"

	"github.com/opd-ai/go-vehicle/pkg/physics"
)

// TorqueCurve returns the fraction of peak torque available at rpm. The
// curve rises, dips through the mid band and rises again toward the
// redline before falling off; it is bounded to [0, 1].
func TorqueCurve(rpm, maxRPM float64) float64 {
	x := 0.0
	if maxRPM > 0 {
		x = physics.Clamp01(rpm / maxRPM)
	}
	return physics.Clamp01(math.Sin(math.Sqrt(x)*math.Pi)*0.58 + math.Sin(x*x*math.Pi)*0.58 + 0.095)
}
