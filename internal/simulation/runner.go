package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Runner errors
var (
	ErrNoPriceStore = errors.New("runner has no price series store")
)

// Runner executes one simulation against stored market data and persists
// its output.
type Runner struct {
	priceStore  storage.PriceSeriesStore
	lotStore    storage.LotSizeStore
	resultStore storage.RunResultStore
	curveStore  storage.EquityCurveStore
	logger      *zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
// ResultStore and CurveStore are optional; nil skips persistence.
type RunnerOptions struct {
	PriceStore  storage.PriceSeriesStore
	LotStore    storage.LotSizeStore
	ResultStore storage.RunResultStore
	CurveStore  storage.EquityCurveStore
	Logger      *zerolog.Logger
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		priceStore:  opts.PriceStore,
		lotStore:    opts.LotStore,
		resultStore: opts.ResultStore,
		curveStore:  opts.CurveStore,
		logger:      opts.Logger,
	}
}

// Run executes a simulation of cfg.
// Steps:
//  1. Load universe from the price series store
//  2. Load lot sizes
//  3. Build the simulator (validates cfg and lots)
//  4. Run all ticks
//  5. Persist RunResult and equity curve
func (r *Runner) Run(ctx context.Context, sweepID string, cfg domain.SimulationConfig) (*domain.RunResult, error) {
	if r.priceStore == nil {
		return nil, ErrNoPriceStore
	}

	// 1. Load universe
	universe, err := storage.LoadUniverse(ctx, r.priceStore)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	// 2. Load lot sizes
	lots := make(domain.LotSizes)
	if r.lotStore != nil {
		if lots, err = r.lotStore.GetAll(ctx); err != nil {
			return nil, fmt.Errorf("load lot sizes: %w", err)
		}
	}

	// 3. Build simulator
	sim, err := New(cfg, universe, lots, Options{Logger: r.logger})
	if err != nil {
		return nil, err
	}

	// 4. Run
	if err := sim.Run(ctx); err != nil {
		return nil, err
	}
	result := sim.Result(sweepID)

	// 5. Persist
	if r.resultStore != nil {
		if err := r.resultStore.Insert(ctx, result); err != nil {
			return nil, fmt.Errorf("persist run result: %w", err)
		}
	}
	if r.curveStore != nil {
		if err := r.curveStore.InsertBulk(ctx, storage.EquityPoints(result)); err != nil {
			return nil, fmt.Errorf("persist equity curve: %w", err)
		}
	}

	return result, nil
}
