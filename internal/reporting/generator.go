package reporting

import (
	"context"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/metrics"
	"momentum-lab/internal/storage"
)

// Generator produces reports from stored run results.
type Generator struct {
	resultStore storage.RunResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(resultStore storage.RunResultStore) *Generator {
	return &Generator{
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads every run of the sweep and builds the ranked report.
// top <= 0 keeps all rows.
func (g *Generator) Generate(ctx context.Context, sweepID string, by Metric, top int) (*Report, error) {
	runs, err := g.resultStore.GetBySweep(ctx, sweepID)
	if err != nil {
		return nil, fmt.Errorf("load sweep %s: %w", sweepID, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("sweep %s: %w", sweepID, storage.ErrNotFound)
	}
	return Build(g.now(), sweepID, runs, by, top), nil
}

// Build assembles a report from runs already in memory.
func Build(at time.Time, sweepID string, runs []*domain.RunResult, by Metric, top int) *Report {
	ranked := Rank(runs, by)
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	rows := make([]RunRow, len(ranked))
	for i, r := range ranked {
		rows[i] = RunRow{
			Rank:     i + 1,
			ConfigID: r.ConfigID,
			Config:   r.Config,
			Summary:  r.Summary,
			Trades:   metrics.Compute(r.Trades),
		}
	}

	var topSymbols []metrics.SymbolStats
	if len(ranked) > 0 {
		topSymbols = metrics.BySymbol(ranked[0].Trades)
	}

	return &Report{
		GeneratedAt: at,
		SweepID:     sweepID,
		RankedBy:    by,
		RunCount:    len(runs),
		Overview:    overview(runs),
		Rows:        rows,
		TopSymbols:  topSymbols,
	}
}

func overview(runs []*domain.RunResult) Overview {
	var o Overview
	if len(runs) == 0 {
		return o
	}

	o.BestProfitRate = runs[0].Summary.FinalProfitRate
	o.WorstProfitRate = runs[0].Summary.FinalProfitRate
	var sum float64
	for _, r := range runs {
		s := r.Summary
		if s.FinalProfitRate > 0 {
			o.ProfitableRuns++
		}
		if s.KillSwitchTriggered {
			o.KillSwitchRuns++
		}
		o.TotalTrades += s.TradeCount
		o.BestProfitRate = max(o.BestProfitRate, s.FinalProfitRate)
		o.WorstProfitRate = min(o.WorstProfitRate, s.FinalProfitRate)
		sum += s.FinalProfitRate
	}
	o.MeanProfitRate = sum / float64(len(runs))
	return o
}
