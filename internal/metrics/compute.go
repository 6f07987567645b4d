// Package metrics computes trade-level distribution statistics for a run.
package metrics

import (
	"math"
	"sort"

	"momentum-lab/internal/domain"
)

// TradeStats describes the distribution of per-trade profit rates of one run.
type TradeStats struct {
	// Counts
	TotalTrades   int
	Wins          int
	Losses        int
	SymbolsTraded int
	SymbolWinRate float64 // symbols with at least one winning trade / symbols traded
	ScaledIn      int     // trades with at least one add-position stage

	// Outcome distribution
	Mean   float64
	Median float64
	P10    float64
	P25    float64
	P75    float64
	P90    float64
	Min    float64
	Max    float64
	Stddev float64

	// Holding
	AvgHoldTicks float64
	MaxHoldTicks int

	// Exits
	ByExitReason map[string]int
}

// SymbolStats summarizes the trades of one symbol within a run.
type SymbolStats struct {
	Symbol      string
	Trades      int
	Wins        int
	RealizedPnL float64
	MeanRate    float64
}

// Compute calculates all statistics from a run's closed trades.
// Trades are sorted by ExitTick ASC, TradeID ASC before computing
// order-dependent values.
func Compute(trades []*domain.TradeRecord) TradeStats {
	n := len(trades)
	stats := TradeStats{ByExitReason: make(map[string]int)}
	if n == 0 {
		return stats
	}

	sorted := sortTrades(trades)

	rates := make([]float64, n)
	holdSum := 0
	for i, t := range sorted {
		rates[i] = t.ProfitRate
		if t.OutcomeClass == domain.OutcomeClassWin {
			stats.Wins++
		} else {
			stats.Losses++
		}
		if t.ScaleIns > 0 {
			stats.ScaledIn++
		}
		hold := t.ExitTick - t.EntryTick
		holdSum += hold
		stats.MaxHoldTicks = max(stats.MaxHoldTicks, hold)
		stats.ByExitReason[t.ExitReason]++
	}

	sortedRates := append([]float64(nil), rates...)
	sort.Float64s(sortedRates)

	mean := computeMean(rates)
	stats.TotalTrades = n
	stats.SymbolsTraded, stats.SymbolWinRate = computeSymbolWinRate(sorted)
	stats.Mean = mean
	stats.Median = computePercentile(sortedRates, 0.50)
	stats.P10 = computePercentile(sortedRates, 0.10)
	stats.P25 = computePercentile(sortedRates, 0.25)
	stats.P75 = computePercentile(sortedRates, 0.75)
	stats.P90 = computePercentile(sortedRates, 0.90)
	stats.Min = sortedRates[0]
	stats.Max = sortedRates[n-1]
	stats.Stddev = computeStddev(rates, mean)
	stats.AvgHoldTicks = float64(holdSum) / float64(n)

	return stats
}

// BySymbol groups a run's trades per symbol, ordered by realized PnL DESC,
// then symbol ASC.
func BySymbol(trades []*domain.TradeRecord) []SymbolStats {
	index := make(map[string]int)
	var out []SymbolStats
	for _, t := range sortTrades(trades) {
		i, ok := index[t.Symbol]
		if !ok {
			i = len(out)
			index[t.Symbol] = i
			out = append(out, SymbolStats{Symbol: t.Symbol})
		}
		s := &out[i]
		s.Trades++
		if t.OutcomeClass == domain.OutcomeClassWin {
			s.Wins++
		}
		s.RealizedPnL += t.RealizedPnL
		s.MeanRate += t.ProfitRate
	}

	for i := range out {
		out[i].MeanRate /= float64(out[i].Trades)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RealizedPnL != out[j].RealizedPnL {
			return out[i].RealizedPnL > out[j].RealizedPnL
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func sortTrades(trades []*domain.TradeRecord) []*domain.TradeRecord {
	sorted := append([]*domain.TradeRecord(nil), trades...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ExitTick != sorted[j].ExitTick {
			return sorted[i].ExitTick < sorted[j].ExitTick
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})
	return sorted
}

// computeSymbolWinRate returns (symbols traded, symbols with at least one win / symbols traded).
func computeSymbolWinRate(trades []*domain.TradeRecord) (int, float64) {
	won := make(map[string]bool)
	for _, t := range trades {
		won[t.Symbol] = won[t.Symbol] || t.OutcomeClass == domain.OutcomeClassWin
	}
	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won))
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is the fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
