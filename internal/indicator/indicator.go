// Package indicator holds the stateless numeric updates used by the simulator.
package indicator

import (
	"math"

	"momentum-lab/internal/domain"
)

// InitialTrailingStop returns the neutral trailing level for a fresh position:
// 0 for long and +Inf for short, so the first update always takes effect.
func InitialTrailingStop(side domain.Side) float64 {
	if side == domain.SideShort {
		return math.Inf(1)
	}
	return 0
}

// UpdateTrailingStop ratchets the trailing stop toward price.
//   - long:  max(price*(1-rate), prev)
//   - short: min(price*(1+rate), prev)
//
// The stop never loosens.
func UpdateTrailingStop(side domain.Side, price, prev, rate float64) float64 {
	if side == domain.SideShort {
		return math.Min(price*(1+rate), prev)
	}
	return math.Max(price*(1-rate), prev)
}

// UpdateMaxDrawdown returns max((peak-value)/peak, prev).
func UpdateMaxDrawdown(value, peak, prev float64) float64 {
	drawdown := (peak - value) / peak
	return math.Max(drawdown, prev)
}
