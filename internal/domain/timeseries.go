package domain

import (
	"fmt"
	"sort"
)

// PricePoint is one (symbol, tick, price) cell of the universe.
// Corresponds to price_series table in ClickHouse.
type PricePoint struct {
	Symbol string  // asset symbol
	Tick   int     // tick index
	Price  float64 // price at this tick (below PriceFloor = not listed)
}

// EquityPoint is one trade-history entry of a stored run.
// Corresponds to equity_curves table in ClickHouse.
type EquityPoint struct {
	SweepID    string  // sweep identifier
	ConfigID   string  // parameter set identifier
	Tick       int     // tick of the close
	ProfitRate float64 // account profit rate after the close
}

// NewUniverseFromPoints assembles a Universe from sparse price cells.
// Symbols are ordered ascending; the history spans ticks 0..max tick and
// missing cells are 0 (not listed).
func NewUniverseFromPoints(points []*PricePoint) (*Universe, error) {
	if len(points) == 0 {
		return nil, ErrEmptyUniverse
	}

	length := 0
	bySymbol := make(map[string][]*PricePoint)
	for _, p := range points {
		if p.Tick < 0 {
			return nil, fmt.Errorf("%w: negative tick %d for %s", ErrSeriesLength, p.Tick, p.Symbol)
		}
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
		length = max(length, p.Tick+1)
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	series := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		s := make([]float64, length)
		for _, p := range bySymbol[symbol] {
			s[p.Tick] = p.Price
		}
		series[i] = s
	}

	return NewUniverse(symbols, series)
}

// Points flattens the universe into listed price cells, ordered by symbol
// then tick. Cells below PriceFloor are omitted.
func (u *Universe) Points() []*PricePoint {
	var points []*PricePoint
	for i, symbol := range u.symbols {
		for tick, price := range u.series[i] {
			if price < PriceFloor {
				continue
			}
			points = append(points, &PricePoint{Symbol: symbol, Tick: tick, Price: price})
		}
	}
	return points
}
