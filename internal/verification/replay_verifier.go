package verification

import (
	"context"
	"errors"
	"fmt"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/simulation"
	"momentum-lab/internal/storage"
)

// ErrRunNotFound is returned when the run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	resultStore storage.RunResultStore
	priceStore  storage.PriceSeriesStore
	lotStore    storage.LotSizeStore
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	ResultStore storage.RunResultStore
	PriceStore  storage.PriceSeriesStore
	LotStore    storage.LotSizeStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		resultStore: opts.ResultStore,
		priceStore:  opts.PriceStore,
		lotStore:    opts.LotStore,
	}
}

// VerifyRun verifies a single run by replaying its simulation.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, sweepID, configID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.resultStore.GetByID(ctx, sweepID, configID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Load inputs
	universe, lots, err := v.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Replay and compare
	return v.verify(ctx, stored, universe, lots)
}

// VerifySweep verifies all stored runs of a sweep.
// Inputs are loaded once and shared by every replay.
func (v *ReplayVerifier) VerifySweep(ctx context.Context, sweepID string) (*VerificationReport, error) {
	runs, err := v.resultStore.GetBySweep(ctx, sweepID)
	if err != nil {
		return nil, err
	}

	universe, lots, err := v.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}
	for _, run := range runs {
		result, err := v.verify(ctx, run, universe, lots)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", run.ConfigID, err)
		}
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
		report.Results = append(report.Results, *result)
	}

	return report, nil
}

func (v *ReplayVerifier) loadInputs(ctx context.Context) (*domain.Universe, domain.LotSizes, error) {
	universe, err := storage.LoadUniverse(ctx, v.priceStore)
	if err != nil {
		return nil, nil, fmt.Errorf("load universe: %w", err)
	}
	lots, err := v.lotStore.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load lot sizes: %w", err)
	}
	return universe, lots, nil
}

func (v *ReplayVerifier) verify(ctx context.Context, stored *domain.RunResult, u *domain.Universe, lots domain.LotSizes) (*VerificationResult, error) {
	sim, err := simulation.New(stored.Config, u, lots, simulation.Options{})
	if err != nil {
		return nil, err
	}
	if err := sim.Run(ctx); err != nil {
		return nil, err
	}
	replayed := sim.Result(stored.SweepID)

	var d []FieldDivergence
	if stored.ConfigID != replayed.ConfigID {
		d = append(d, FieldDivergence{Field: "ConfigID", Expected: stored.ConfigID, Actual: replayed.ConfigID})
	}
	d = append(d, CompareSummaries(stored.Summary, replayed.Summary)...)

	if len(stored.Trades) != len(replayed.Trades) {
		d = append(d, FieldDivergence{Field: "len(Trades)", Expected: len(stored.Trades), Actual: len(replayed.Trades)})
	}
	for i := 0; i < min(len(stored.Trades), len(replayed.Trades)); i++ {
		for _, fd := range CompareTradeRecords(stored.Trades[i], replayed.Trades[i]) {
			fd.Field = fmt.Sprintf("Trades[%d].%s", i, fd.Field)
			d = append(d, fd)
		}
	}

	return &VerificationResult{
		SweepID:     stored.SweepID,
		ConfigID:    stored.ConfigID,
		Match:       len(d) == 0,
		Divergences: d,
	}, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
