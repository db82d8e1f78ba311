// Package phi provides the simulation's tuning constants, all derived from
// the golden ratio, and the supply/demand field model built on them.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

var (
	// Agnosis (Φ⁻³) ~24%: the premium a buyer tolerates over the reference price.
	Agnosis = math.Pow(Phi, -3)

	// Psyche (Φ⁻²) ~38%: the margin a seller adds over production cost.
	Psyche = math.Pow(Phi, -2)

	// Matter (Φ⁻¹) ~62%: lower edge of the healthy supply/demand band.
	Matter = math.Pow(Phi, -1)

	// Being (Φ¹): upper edge of the healthy supply/demand band.
	Being = Phi

	// Totality (Φ³) ~4.24: imbalance at which a market counts as collapsed.
	Totality = math.Pow(Phi, 3)
)

// Bps converts a ratio to whole basis points.
func Bps(ratio float64) int64 {
	return int64(math.Round(ratio * 10000))
}
