package domain

import (
	"errors"
	"fmt"
)

// PriceFloor is the validity floor for price points. A price strictly below
// it marks the symbol as not listed (or otherwise unusable) at that tick.
const PriceFloor = 2.0

// Universe errors
var (
	ErrEmptyUniverse   = errors.New("universe has no symbols")
	ErrSeriesLength    = errors.New("price series lengths differ")
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrEmptySymbol     = errors.New("empty symbol")
)

// Universe is the shared multi-asset price history. Index t of every series
// denotes the same tick. A Universe is never mutated after NewUniverse
// returns, so any number of simulators may read it concurrently.
type Universe struct {
	symbols []string
	index   map[string]int
	series  [][]float64
	length  int
}

// NewUniverse builds a Universe from parallel symbol/series slices.
// Symbol order is preserved and is the iteration order used for
// tie-breaking during selection. Series are copied.
func NewUniverse(symbols []string, series [][]float64) (*Universe, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyUniverse
	}
	if len(symbols) != len(series) {
		return nil, fmt.Errorf("%w: %d symbols, %d series", ErrSeriesLength, len(symbols), len(series))
	}

	u := &Universe{
		symbols: make([]string, len(symbols)),
		index:   make(map[string]int, len(symbols)),
		series:  make([][]float64, len(series)),
		length:  len(series[0]),
	}

	for i, sym := range symbols {
		if sym == "" {
			return nil, ErrEmptySymbol
		}
		if _, exists := u.index[sym]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, sym)
		}
		if len(series[i]) != u.length {
			return nil, fmt.Errorf("%w: %s has %d points, want %d", ErrSeriesLength, sym, len(series[i]), u.length)
		}
		u.symbols[i] = sym
		u.index[sym] = i
		u.series[i] = append([]float64(nil), series[i]...)
	}

	return u, nil
}

// Len returns the number of ticks in every series.
func (u *Universe) Len() int {
	return u.length
}

// NumSymbols returns the number of symbols.
func (u *Universe) NumSymbols() int {
	return len(u.symbols)
}

// Symbols returns a copy of the symbols in universe order.
func (u *Universe) Symbols() []string {
	return append([]string(nil), u.symbols...)
}

// Symbol returns the i-th symbol in universe order.
func (u *Universe) Symbol(i int) string {
	return u.symbols[i]
}

// SeriesAt returns the i-th series. The slice is shared; callers must not modify it.
func (u *Universe) SeriesAt(i int) []float64 {
	return u.series[i]
}

// Series returns the price series for symbol. The slice is shared; callers must not modify it.
func (u *Universe) Series(symbol string) ([]float64, bool) {
	i, ok := u.index[symbol]
	if !ok {
		return nil, false
	}
	return u.series[i], true
}
