package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/simulation"
)

// Runner errors
var (
	ErrNoUniverse = errors.New("sweep runner has no universe")
)

// Result is the outcome of one parameter set.
type Result struct {
	Config domain.SimulationConfig
	Run    *domain.RunResult // nil when Err is set
	Err    error             // configuration error; other errors abort the sweep
}

// Runner runs many simulators in parallel over one shared universe.
type Runner struct {
	universe *domain.Universe
	lots     domain.LotSizes
	workers  int
	logger   zerolog.Logger
	metrics  *observability.Metrics
	sink     Sink
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Universe *domain.Universe
	LotSizes domain.LotSizes
	Workers  int                    // 0 = runtime.NumCPU()
	Logger   *zerolog.Logger        // nil = no logging
	Metrics  *observability.Metrics // nil = no metrics
	Sink     Sink                   // nil = results only returned
}

// NewRunner creates a sweep runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Runner{
		universe: opts.Universe,
		lots:     opts.LotSizes,
		workers:  workers,
		logger:   logger.With().Str("component", "sweep").Logger(),
		metrics:  opts.Metrics,
		sink:     opts.Sink,
	}
}

// Run simulates every config and returns results in input order.
// A config that fails validation is reported in its Result and does not stop
// the sweep. Context cancellation and sink failures abort it; the returned
// slice then holds whatever finished.
func (r *Runner) Run(ctx context.Context, sweepID string, configs []domain.SimulationConfig) ([]Result, error) {
	if r.universe == nil {
		return nil, ErrNoUniverse
	}

	start := time.Now()
	results := make([]Result, len(configs))
	var done atomic.Int64

	r.logger.Info().
		Str("sweep_id", sweepID).
		Int("configs", len(configs)).
		Int("workers", r.workers).
		Msg("sweep started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, cfg := range configs {
		if gctx.Err() != nil {
			break
		}
		i, cfg := i, cfg // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			res, err := r.runOne(gctx, sweepID, cfg)
			results[i] = res
			if err != nil {
				return err
			}
			if n := done.Add(1); n%100 == 0 {
				r.logger.Info().Int64("done", n).Int("total", len(configs)).Msg("sweep progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	elapsed := time.Since(start)
	r.metrics.RecordSweep(elapsed)
	r.logger.Info().
		Str("sweep_id", sweepID).
		Int64("completed", done.Load()).
		Dur("elapsed", elapsed).
		Msg("sweep finished")

	return results, nil
}

// runOne simulates a single config. The returned error aborts the sweep;
// configuration problems are carried in Result.Err instead.
func (r *Runner) runOne(ctx context.Context, sweepID string, cfg domain.SimulationConfig) (Result, error) {
	res := Result{Config: cfg}
	start := time.Now()
	r.metrics.RunStarted()

	sim, err := simulation.New(cfg, r.universe, r.lots, simulation.Options{Logger: &r.logger})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			r.metrics.RecordRun(observability.StatusInvalidConfig, time.Since(start), 0, false)
			r.logger.Warn().Err(err).Msg("skipping invalid config")
			res.Err = err
			return res, nil
		}
		r.metrics.RecordRun(observability.StatusError, time.Since(start), 0, false)
		return res, err
	}

	if err := sim.Run(ctx); err != nil {
		r.metrics.RecordRun(observability.StatusError, time.Since(start), 0, false)
		return res, err
	}

	run := sim.Result(sweepID)
	r.metrics.RecordRun(observability.StatusOK, time.Since(start), run.Summary.TradeCount, run.Summary.KillSwitchTriggered)
	res.Run = run

	if r.sink != nil {
		err := r.sink.Save(ctx, run)
		r.metrics.RecordStored(err)
		if err != nil {
			return res, fmt.Errorf("save run %s: %w", run.ConfigID, err)
		}
	}

	r.logger.Debug().
		Str("config_id", run.ConfigID).
		Int("trades", run.Summary.TradeCount).
		Float64("final_profit_rate", run.Summary.FinalProfitRate).
		Msg("run finished")
	return res, nil
}
