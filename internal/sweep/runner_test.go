package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
	"momentum-lab/internal/storage/memory"
)

func testUniverse(t *testing.T) (*domain.Universe, domain.LotSizes) {
	t.Helper()
	u, err := domain.NewUniverse([]string{"A", "B", "C"}, [][]float64{
		{100, 104, 108, 112, 110, 105, 100, 98, 101, 106, 111, 115},
		{100, 101, 103, 106, 110, 115, 118, 116, 113, 110, 108, 107},
		{50, 49, 48, 50, 53, 57, 60, 63, 61, 58, 57, 59},
	})
	require.NoError(t, err)
	return u, domain.LotSizes{"A": 1, "B": 0.5, "C": 0.1}
}

func testConfigs(n int) []domain.SimulationConfig {
	configs := make([]domain.SimulationConfig, n)
	for i := range configs {
		fee := 0.001
		configs[i] = domain.SimulationConfig{
			Side:           domain.SideLong,
			Leverage:       1 + float64(i)*0.1,
			LookbackTicks:  1 + i%3,
			MaxHoldTicks:   2 + i%4,
			StopLossRate:   0.03,
			InitialBalance: 10000,
			FeeRate:        &fee,
		}
	}
	return configs
}

type failingSink struct{ err error }

func (f failingSink) Save(context.Context, *domain.RunResult) error { return f.err }

func TestRunner_ResultsInInputOrder(t *testing.T) {
	u, lots := testUniverse(t)
	configs := testConfigs(12)

	runner := NewRunner(RunnerOptions{Universe: u, LotSizes: lots, Workers: 4})
	results, err := runner.Run(context.Background(), "sweep-1", configs)
	require.NoError(t, err)
	require.Len(t, results, len(configs))

	for i, res := range results {
		require.NoError(t, res.Err)
		require.NotNil(t, res.Run)
		assert.Equal(t, configs[i], res.Config)
		assert.Equal(t, configs[i], res.Run.Config)
		assert.Equal(t, "sweep-1", res.Run.SweepID)
	}
}

func TestRunner_MatchesSerial(t *testing.T) {
	u, lots := testUniverse(t)
	configs := testConfigs(8)

	parallel, err := NewRunner(RunnerOptions{Universe: u, LotSizes: lots, Workers: 8}).
		Run(context.Background(), "s", configs)
	require.NoError(t, err)
	serial, err := NewRunner(RunnerOptions{Universe: u, LotSizes: lots, Workers: 1}).
		Run(context.Background(), "s", configs)
	require.NoError(t, err)

	for i := range configs {
		assert.Equal(t, serial[i].Run.Summary, parallel[i].Run.Summary)
		assert.Equal(t, serial[i].Run.Trades, parallel[i].Run.Trades)
	}
}

func TestRunner_InvalidConfigRecorded(t *testing.T) {
	u, lots := testUniverse(t)
	configs := testConfigs(3)
	configs[1].Leverage = 0

	collector := &Collector{}
	runner := NewRunner(RunnerOptions{Universe: u, LotSizes: lots, Sink: collector})
	results, err := runner.Run(context.Background(), "sweep-1", configs)
	require.NoError(t, err)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrInvalidConfig)
	assert.Nil(t, results[1].Run)
	assert.NoError(t, results[2].Err)
	assert.Len(t, collector.Runs(), 2)
}

func TestRunner_MissingLotSizeIsConfigError(t *testing.T) {
	u, _ := testUniverse(t)
	runner := NewRunner(RunnerOptions{Universe: u, LotSizes: domain.LotSizes{"A": 1}})

	results, err := runner.Run(context.Background(), "sweep-1", testConfigs(2))
	require.NoError(t, err)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, domain.ErrInvalidConfig)
	}
}

func TestRunner_StoreSink(t *testing.T) {
	ctx := context.Background()
	u, lots := testUniverse(t)
	configs := testConfigs(5)

	results := memory.NewRunResultStore()
	curves := memory.NewEquityCurveStore()
	runner := NewRunner(RunnerOptions{
		Universe: u,
		LotSizes: lots,
		Sink:     StoreSink{Results: results, Curves: curves},
	})

	out, err := runner.Run(ctx, "sweep-1", configs)
	require.NoError(t, err)

	stored, err := results.GetBySweep(ctx, "sweep-1")
	require.NoError(t, err)
	assert.Len(t, stored, len(configs))

	for _, res := range out {
		points, err := curves.GetByRun(ctx, "sweep-1", res.Run.ConfigID)
		if len(res.Run.History) == 0 {
			assert.True(t, err == nil || errors.Is(err, storage.ErrNotFound))
			continue
		}
		require.NoError(t, err)
		assert.Len(t, points, len(res.Run.History))
	}
}

func TestRunner_SinkErrorAborts(t *testing.T) {
	u, lots := testUniverse(t)
	boom := errors.New("boom")

	runner := NewRunner(RunnerOptions{
		Universe: u,
		LotSizes: lots,
		Workers:  2,
		Sink:     MultiSink{&Collector{}, failingSink{err: boom}},
	})
	_, err := runner.Run(context.Background(), "sweep-1", testConfigs(6))
	assert.ErrorIs(t, err, boom)
}

func TestRunner_Cancelled(t *testing.T) {
	u, lots := testUniverse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(RunnerOptions{Universe: u, LotSizes: lots})
	_, err := runner.Run(ctx, "sweep-1", testConfigs(4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_NoUniverse(t *testing.T) {
	_, err := NewRunner(RunnerOptions{}).Run(context.Background(), "s", testConfigs(1))
	assert.ErrorIs(t, err, ErrNoUniverse)
}

func TestRunner_Metrics(t *testing.T) {
	u, lots := testUniverse(t)
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)

	configs := testConfigs(3)
	configs[0].LookbackTicks = 0

	runner := NewRunner(RunnerOptions{Universe: u, LotSizes: lots, Metrics: m, Sink: &Collector{}})
	_, err := runner.Run(context.Background(), "sweep-1", configs)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "test_simulation_runs_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "status" {
					counts[l.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, counts[observability.StatusOK])
	assert.Equal(t, 1.0, counts[observability.StatusInvalidConfig])
}
