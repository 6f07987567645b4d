package reporting

import (
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/metrics"
)

// Report represents the sweep overview.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	SweepID     string
	RankedBy    Metric
	RunCount    int

	// Aggregates over every run of the sweep
	Overview Overview

	// Runs in ranked order, truncated to the requested top N
	Rows []RunRow

	// Per-symbol breakdown of the first row
	TopSymbols []metrics.SymbolStats
}

// Overview summarizes the whole sweep.
type Overview struct {
	ProfitableRuns  int
	KillSwitchRuns  int
	TotalTrades     int
	BestProfitRate  float64
	WorstProfitRate float64
	MeanProfitRate  float64
}

// RunRow represents one row of the overview table.
type RunRow struct {
	Rank     int // 1-based
	ConfigID string
	Config   domain.SimulationConfig
	Summary  domain.Summary
	Trades   metrics.TradeStats
}
