package domain

import (
	"errors"
	"fmt"
	"math"
)

// Lot size errors
var (
	ErrMissingLotSize = errors.New("missing lot size")
	ErrInvalidLotSize = errors.New("lot size must be positive")
)

// LotSizes maps symbol to its minimum tradable quantity increment.
// Like Universe, it is read-only once a run starts.
type LotSizes map[string]float64

// Validate checks that every universe symbol has a positive lot size.
func (l LotSizes) Validate(u *Universe) error {
	for _, sym := range u.symbols {
		lot, ok := l[sym]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingLotSize, sym)
		}
		if !(lot > 0) || math.IsInf(lot, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidLotSize, sym, lot)
		}
	}
	return nil
}

// Quantize rounds qty down to a non-negative multiple of lot.
func Quantize(qty, lot float64) float64 {
	if !(qty > 0) {
		return 0
	}
	return math.Floor(qty/lot) * lot
}
