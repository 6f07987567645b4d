package reporting

import (
	"errors"
	"fmt"
	"sort"

	"momentum-lab/internal/domain"
)

// ErrUnknownMetric is returned by ParseMetric.
var ErrUnknownMetric = errors.New("unknown ranking metric")

// Metric selects the summary field runs are ranked by.
type Metric string

const (
	MetricFinalProfitRate Metric = "final_profit_rate"
	MetricProfitRatePeak  Metric = "profit_rate_peak"
	MetricProfitFactor    Metric = "profit_factor"
	MetricWinRate         Metric = "win_rate"
	MetricMaxDrawdown     Metric = "max_drawdown" // lower is better
	MetricTradeCount      Metric = "trade_count"
)

// ParseMetric converts a flag value into a Metric. Empty means MetricFinalProfitRate.
func ParseMetric(raw string) (Metric, error) {
	switch m := Metric(raw); m {
	case "":
		return MetricFinalProfitRate, nil
	case MetricFinalProfitRate, MetricProfitRatePeak, MetricProfitFactor,
		MetricWinRate, MetricMaxDrawdown, MetricTradeCount:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, raw)
	}
}

// value returns the metric for s, oriented so that larger is better.
// ok is false when the metric is undefined for the run.
func (m Metric) value(s domain.Summary) (v float64, ok bool) {
	switch m {
	case MetricProfitRatePeak:
		return s.ProfitRatePeak, true
	case MetricProfitFactor:
		if s.ProfitFactor == nil {
			return 0, false
		}
		return *s.ProfitFactor, true
	case MetricWinRate:
		if s.WinRate == nil {
			return 0, false
		}
		return *s.WinRate, true
	case MetricMaxDrawdown:
		return -s.MaxDrawdown, true
	case MetricTradeCount:
		return float64(s.TradeCount), true
	default:
		return s.FinalProfitRate, true
	}
}

// Rank returns runs ordered best first by the metric. Runs where the metric
// is undefined go last; ties are broken by config ID. The input is not modified.
func Rank(runs []*domain.RunResult, by Metric) []*domain.RunResult {
	out := append([]*domain.RunResult(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		vi, oki := by.value(out[i].Summary)
		vj, okj := by.value(out[j].Summary)
		if oki != okj {
			return oki
		}
		if oki && vi != vj {
			return vi > vj
		}
		return out[i].ConfigID < out[j].ConfigID
	})
	return out
}
