package simulation

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/selection"
)

func ptr[T any](v T) *T { return &v }

func makeUniverse(t *testing.T, symbols []string, series ...[]float64) *domain.Universe {
	t.Helper()
	u, err := domain.NewUniverse(symbols, series)
	require.NoError(t, err)
	return u
}

func unitLots(symbols ...string) domain.LotSizes {
	lots := make(domain.LotSizes, len(symbols))
	for _, s := range symbols {
		lots[s] = 1
	}
	return lots
}

// baseConfig is a long, unleveraged, fee-free config with only the
// required rules enabled.
func baseConfig() domain.SimulationConfig {
	return domain.SimulationConfig{
		Rank:           0,
		Side:           domain.SideLong,
		Leverage:       1,
		LookbackTicks:  1,
		MaxHoldTicks:   1000,
		StopLossRate:   0.5,
		InitialBalance: 10000,
		FeeRate:        ptr(0.0),
	}
}

func newSim(t *testing.T, cfg domain.SimulationConfig, u *domain.Universe, lots domain.LotSizes) *Simulator {
	t.Helper()
	sim, err := New(cfg, u, lots, Options{})
	require.NoError(t, err)
	return sim
}

func TestSimulator_RisingThenFlat(t *testing.T) {
	prices := make([]float64, 300)
	for i := range prices {
		prices[i] = 90 + math.Min(float64(i), 199)
	}
	u := makeUniverse(t, []string{"AAA"}, prices)

	cfg := baseConfig()
	cfg.LookbackTicks = 10
	cfg.MaxHoldTicks = 50
	cfg.StopLossRate = 0.1
	cfg.MinMomentum = ptr(0.0)

	sim := newSim(t, cfg, u, unitLots("AAA"))

	for tick := 0; tick < cfg.LookbackTicks; tick++ {
		out := sim.Step(tick)
		assert.ErrorIs(t, out.Blocked, selection.ErrInsufficientHistory, "tick %d", tick)
	}
	out := sim.Step(cfg.LookbackTicks)
	require.Equal(t, 1, out.Opens, "opens at tick == lookback")

	state := sim.State()
	assert.Equal(t, "AAA", state.Symbol)
	assert.Equal(t, cfg.LookbackTicks, state.EntryTick)
	assert.Equal(t, 100.0, state.EntryPrice)
	assert.Equal(t, 100.0, state.Position)

	for tick := cfg.LookbackTicks + 1; tick < len(prices); tick++ {
		out := sim.Step(tick)
		assert.NotEqual(t, domain.ExitReasonStopLoss, out.Reason)
	}

	sum := sim.Summary()
	assert.GreaterOrEqual(t, sum.TradeCount, 1)
	assert.Equal(t, sum.TradeCount, sum.WinCount)
	assert.Zero(t, sum.MaxLossStreak)
	assert.Zero(t, sum.TotalLoss)
	assert.Nil(t, sum.ProfitFactor, "undefined with no losses")
	require.NotNil(t, sum.WinRate)
	assert.Equal(t, 1.0, *sum.WinRate)
	assert.InDelta(t, 289.0/100.0-1, sum.FinalProfitRate, 1e-9)
	assert.InDelta(t, 0, sum.MaxDrawdown, 1e-12)

	history := sim.History()
	require.Len(t, history, 1)
	assert.Equal(t, 209, history[0].Tick, "closes once momentum goes flat")
	assert.InDelta(t, 1.89, history[0].ProfitRate, 1e-9)
}

func TestSimulator_CloseVersusRotate(t *testing.T) {
	u := makeUniverse(t, []string{"A", "B"},
		[]float64{100, 110, 115, 116, 100},
		[]float64{100, 101, 103, 120, 119},
	)
	cfg := baseConfig()
	cfg.MaxHoldTicks = 1
	sim := newSim(t, cfg, u, unitLots("A", "B"))

	out := sim.Step(0)
	assert.ErrorIs(t, out.Blocked, selection.ErrInsufficientHistory)

	out = sim.Step(1)
	require.Equal(t, 1, out.Opens)
	assert.Equal(t, "A", sim.State().Symbol)

	// max hold reached, A still ranked first and above entry
	out = sim.Step(2)
	assert.Zero(t, out.Closes)
	assert.Equal(t, "A", sim.State().Symbol)

	// B overtakes: rotate
	out = sim.Step(3)
	assert.Equal(t, 1, out.Closes)
	assert.Equal(t, 1, out.Opens)
	assert.Equal(t, domain.ExitReasonMaxHold, out.Reason)
	assert.Equal(t, "B", sim.State().Symbol)
	assert.Equal(t, 120.0, sim.State().EntryPrice)

	// B still ranked first but below entry: close and re-open
	out = sim.Step(4)
	assert.Equal(t, 1, out.Closes)
	assert.Equal(t, 1, out.Opens)
	assert.Equal(t, "B", sim.State().Symbol)
	assert.Equal(t, 119.0, sim.State().EntryPrice)

	trades := sim.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "A", trades[0].Symbol)
	assert.Equal(t, domain.OutcomeClassWin, trades[0].OutcomeClass)
	assert.Equal(t, 90.0, trades[0].Position)
	assert.Equal(t, "B", trades[1].Symbol)
	assert.Equal(t, domain.OutcomeClassLoss, trades[1].OutcomeClass)
	assert.Equal(t, 87.0, trades[1].Position)

	sum := sim.Summary()
	assert.Equal(t, 2, sum.TradeCount)
	assert.Equal(t, 1, sum.MaxStreak)
	assert.Equal(t, 1, sum.MaxLossStreak)
	assert.InDelta(t, 540, sum.TotalProfit, 1e-9)
	assert.InDelta(t, 87, sum.TotalLoss, 1e-9)
	require.NotNil(t, sum.ProfitFactor)
	assert.InDelta(t, 540.0/87.0, *sum.ProfitFactor, 1e-9)
	assert.InDelta(t, 116.0/110.0-1, sum.MaxProfitRateSingleTrade, 1e-12)
	assert.InDelta(t, 119.0/120.0-1, sum.MaxLossRateSingleTrade, 1e-12)
}

func TestSimulator_StopLossClosesWhenBelowEntry(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110, 98})
	cfg := baseConfig()
	cfg.StopLossRate = 0.1
	cfg.CooldownTicks = ptr(5)
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	sim.Step(1)
	out := sim.Step(2)

	assert.Equal(t, 1, out.Closes)
	assert.Equal(t, domain.ExitReasonStopLoss, out.Reason)
	// rank 0 returns the banned symbol anyway
	assert.Equal(t, 1, out.Opens)

	state := sim.State()
	assert.Equal(t, "S", state.Symbol)
	assert.Equal(t, map[string]int{"S": 2}, state.Banned)
}

func TestSimulator_CooldownBanSkipsRankSlot(t *testing.T) {
	run := func(cooldown *int) string {
		u := makeUniverse(t, []string{"A", "B", "C"},
			[]float64{100, 130, 100},
			[]float64{100, 120, 115},
			[]float64{100, 110, 90},
		)
		cfg := baseConfig()
		cfg.Rank = 1
		cfg.MaxHoldTicks = 1
		cfg.CooldownTicks = cooldown
		sim := newSim(t, cfg, u, unitLots("A", "B", "C"))

		sim.Step(0)
		sim.Step(1)
		require.Equal(t, "B", sim.State().Symbol)

		out := sim.Step(2)
		require.Equal(t, 1, out.Closes)
		require.Equal(t, 1, out.Opens)
		return sim.State().Symbol
	}

	assert.Equal(t, "C", run(nil), "without cooldown the ban is purged on re-open")
	assert.Equal(t, "A", run(ptr(2)), "banned B is skipped without using the rank slot")
}

func TestSimulator_BanPurgedAfterCooldown(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110, 98, 97, 96, 95})
	cfg := baseConfig()
	cfg.StopLossRate = 0.1
	cfg.CooldownTicks = ptr(2)
	cfg.MinMomentum = ptr(0.0)
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	sim.Step(1)
	out := sim.Step(2)
	require.Equal(t, 1, out.Closes)
	assert.ErrorIs(t, out.Blocked, selection.ErrNoEligibleAsset)
	assert.Contains(t, sim.State().Banned, "S")

	sim.Step(3)
	assert.Contains(t, sim.State().Banned, "S", "3-2 < cooldown")

	sim.Step(4)
	assert.NotContains(t, sim.State().Banned, "S", "4-2 >= cooldown")
}

func TestSimulator_KillSwitchHaltsOpens(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110, 100, 85, 80, 120, 130})
	cfg := baseConfig()
	cfg.StopLossRate = 0.9
	cfg.MaxDrawdown = ptr(0.2)
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	require.Equal(t, 1, sim.Step(1).Opens)
	assert.Zero(t, sim.Step(2).Closes)

	out := sim.Step(3)
	assert.True(t, out.KillSwitch)
	assert.Equal(t, 1, out.Closes)
	assert.Zero(t, out.Opens, "no re-open on the kill-switch tick")
	assert.Equal(t, domain.ExitReasonKillSwitch, out.Reason)

	for tick := 4; tick < u.Len(); tick++ {
		out := sim.Step(tick)
		assert.ErrorIs(t, out.Blocked, ErrOpenSuppressed, "tick %d", tick)
	}

	sum := sim.Summary()
	assert.True(t, sum.KillSwitchTriggered)
	assert.Equal(t, 1, sum.TradeCount)
	assert.InDelta(t, 90*25, sum.TotalLoss, 1e-9)
	require.NotNil(t, sum.ProfitFactor)
	assert.Zero(t, *sum.ProfitFactor)
	require.NotNil(t, sum.WinRate)
	assert.Zero(t, *sum.WinRate)
	assert.Greater(t, sum.MaxDrawdown, 0.2)
}

func TestSimulator_ScaleInStagesFireOnce(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{50, 100, 105, 111, 115, 121, 125, 130})
	cfg := baseConfig()
	cfg.ScaleIn = &domain.ScaleInRule{Stage1Rate: ptr(0.1), Stage2Rate: ptr(0.2)}
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	require.Equal(t, 1, sim.Step(1).Opens)
	assert.InDelta(t, 110, sim.State().AddPrice1, 1e-9)
	assert.InDelta(t, 120, sim.State().AddPrice2, 1e-9)

	assert.Zero(t, sim.Step(2).ScaleIns)
	assert.Equal(t, 1, sim.Step(3).ScaleIns)
	assert.Equal(t, 145.0, sim.State().Position)
	assert.Zero(t, sim.Step(4).ScaleIns)
	assert.Equal(t, 1, sim.Step(5).ScaleIns)
	assert.Zero(t, sim.Step(6).ScaleIns)
	assert.Zero(t, sim.Step(7).ScaleIns)

	state := sim.State()
	assert.True(t, state.Added1)
	assert.True(t, state.Added2)
	assert.Equal(t, 165.0, state.Position)
	assert.InDelta(t, 10000+45*111+20*121, state.CostBasis, 1e-9)
	assert.InDelta(t, -(45*111 + 20*121), state.Balance, 1e-9)
}

func TestSimulator_ScaleInSizedFromLeveragedEntry(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{50, 100, 111})
	cfg := baseConfig()
	cfg.Leverage = 2
	cfg.ScaleIn = &domain.ScaleInRule{Stage1Rate: ptr(0.1)}
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	require.Equal(t, 1, sim.Step(1).Opens)
	require.Equal(t, 200.0, sim.State().Position)
	require.InDelta(t, 20000, sim.State().EntryNotional, 1e-9)

	require.Equal(t, 1, sim.Step(2).ScaleIns)
	state := sim.State()
	// half of floor(20000/111) = 90, leverage not applied a second time
	assert.Equal(t, 290.0, state.Position)
	assert.InDelta(t, 20000+90*111, state.CostBasis, 1e-9)
	assert.InDelta(t, 10000-20000-90*111, state.Balance, 1e-9)
}

func TestSimulator_StepOutsideHistory(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{50, 100, 110})
	sim := newSim(t, baseConfig(), u, unitLots("S"))

	sim.Step(0)
	require.Equal(t, 1, sim.Step(1).Opens)
	before := sim.State()

	for _, tick := range []int{3, 10, -1} {
		var out Outcome
		require.NotPanics(t, func() { out = sim.Step(tick) })
		assert.ErrorIs(t, out.Blocked, ErrTickOutOfRange)
		assert.Zero(t, out.Opens)
		assert.Zero(t, out.Closes)
	}
	assert.Equal(t, before, sim.State())

	out := sim.Step(2)
	assert.NoError(t, out.Blocked)
	assert.Equal(t, "S", sim.State().Symbol)
}

func TestSimulator_ShortSide(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{200, 180, 170, 160, 165})
	cfg := baseConfig()
	cfg.Side = domain.SideShort
	cfg.StopLossRate = 0.1
	cfg.MaxHoldTicks = 2
	cfg.MinMomentum = ptr(0.0)
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	require.Equal(t, 1, sim.Step(1).Opens)
	state := sim.State()
	assert.Equal(t, 55.0, state.Position)
	assert.InDelta(t, 198, state.StopLossPrice, 1e-9)

	sim.Step(2)
	assert.InDelta(t, 10550, sim.State().Value, 1e-9)

	// max hold reached but still the pick and in profit
	assert.Zero(t, sim.Step(3).Closes)

	// momentum turns negative: no pick, close
	out := sim.Step(4)
	assert.Equal(t, 1, out.Closes)
	assert.ErrorIs(t, out.Blocked, selection.ErrNoEligibleAsset)

	sum := sim.Summary()
	assert.Equal(t, 1, sum.WinCount)
	assert.InDelta(t, 10825, sum.FinalValue, 1e-9)
	assert.InDelta(t, 55*15, sum.TotalProfit, 1e-9)

	trades := sim.Trades()
	require.Len(t, trades, 1)
	assert.InDelta(t, 180.0/165.0-1, trades[0].ProfitRate, 1e-12)
	assert.InDelta(t, 55*15, trades[0].RealizedPnL, 1e-9)
}

func TestSimulator_ShortTrailingStop(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{200, 180, 150, 140, 185})
	cfg := baseConfig()
	cfg.Side = domain.SideShort
	cfg.Trailing = &domain.TrailingRule{DelayTicks: 1, Rate: 0.1}
	sim := newSim(t, cfg, u, unitLots("S"))

	sim.Step(0)
	sim.Step(1)
	assert.InDelta(t, 198, sim.State().TrailingStopPrice, 1e-9)
	sim.Step(2)
	assert.InDelta(t, 165, sim.State().TrailingStopPrice, 1e-9)
	sim.Step(3)
	assert.InDelta(t, 154, sim.State().TrailingStopPrice, 1e-9)

	// above entry: the trailing breach closes and the sole symbol re-opens
	out := sim.Step(4)
	assert.Equal(t, 1, out.Closes)
	assert.Equal(t, domain.ExitReasonTrailingStop, out.Reason)
	assert.Equal(t, 185.0, sim.State().EntryPrice)
}

func TestSimulator_PauseSuppressesOpen(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110, 120})
	sim := newSim(t, baseConfig(), u, unitLots("S"))

	sim.SetPaused(true)
	sim.Step(0)
	out := sim.Step(1)
	assert.ErrorIs(t, out.Blocked, ErrOpenSuppressed)
	assert.Equal(t, "", sim.State().Symbol)

	sim.SetPaused(false)
	out = sim.Step(2)
	assert.Equal(t, 1, out.Opens)
}

func TestSimulator_InsufficientBalance(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 20000})
	sim := newSim(t, baseConfig(), u, unitLots("S"))

	sim.Step(0)
	out := sim.Step(1)
	assert.ErrorIs(t, out.Blocked, ErrInsufficientBalance)
	assert.ErrorIs(t, out.Blocked, ErrOpenSuppressed)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110})

	cfg := baseConfig()
	cfg.Side = "sideways"
	_, err := New(cfg, u, unitLots("S"), Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	cfg = baseConfig()
	cfg.Leverage = 0
	cfg.LookbackTicks = 0
	_, err = New(cfg, u, unitLots("S"), Options{})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 2)
	assert.NotErrorIs(t, err, domain.ErrInvalidSide)

	_, err = New(baseConfig(), u, domain.LotSizes{}, Options{})
	assert.ErrorIs(t, err, domain.ErrMissingLotSize)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = New(baseConfig(), u, unitLots("S"), Options{Ticks: 3})
	assert.ErrorIs(t, err, ErrTicksInRange)

	_, err = New(baseConfig(), nil, unitLots("S"), Options{})
	assert.ErrorIs(t, err, ErrNilUniverse)
}

func TestSimulator_RunHonoursContext(t *testing.T) {
	u := makeUniverse(t, []string{"S"}, []float64{100, 110, 120})
	sim := newSim(t, baseConfig(), u, unitLots("S"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.Run(ctx), context.Canceled)
	assert.ErrorIs(t, sim.Run(context.Background()), ErrAlreadyRun)
}

// randomWalk builds a seeded multi-symbol universe. Symbol i is unlisted
// (price 0) for its first 15*i ticks.
func randomWalk(t *testing.T, seed int64, symbols []string, ticks int) *domain.Universe {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	series := make([][]float64, len(symbols))
	for i := range symbols {
		s := make([]float64, ticks)
		p := 5 + r.Float64()*45
		for tick := range s {
			p *= 1 + (r.Float64()-0.5)*0.08
			p = math.Max(p, 2.5)
			if tick >= 15*i {
				s[tick] = p
			}
		}
		series[i] = s
	}
	return makeUniverse(t, symbols, series...)
}

func fullConfig() domain.SimulationConfig {
	return domain.SimulationConfig{
		Rank:           1,
		Side:           domain.SideLong,
		Leverage:       2.5,
		LookbackTicks:  12,
		MaxHoldTicks:   30,
		StopLossRate:   0.06,
		InitialBalance: 10000,
		Trailing:       &domain.TrailingRule{DelayTicks: 10, Rate: 0.04},
		ProfitTarget:   &domain.ProfitTargetRule{DelayTicks: 5, Rate: 0.03},
		ScaleIn:        &domain.ScaleInRule{Stage1Rate: ptr(0.03), Stage2Rate: ptr(0.06)},
		CooldownTicks:  ptr(20),
		MinMomentum:    ptr(0.0),
	}
}

func TestSimulator_Invariants(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	u := randomWalk(t, 7, symbols, 2000)
	lots := domain.LotSizes{"AAA": 1, "BBB": 0.5, "CCC": 10, "DDD": 0.25}

	sim := newSim(t, fullConfig(), u, lots)

	var prev Statistics
	var prevState State
	for tick := 0; tick < u.Len(); tick++ {
		sim.Step(tick)
		stats := sim.Statistics()
		state := sim.State()

		assert.GreaterOrEqual(t, stats.MaxDrawdown, prev.MaxDrawdown, "tick %d", tick)
		assert.GreaterOrEqual(t, stats.ProfitRatePeak, prev.ProfitRatePeak, "tick %d", tick)

		if state.Symbol == "" {
			assert.Zero(t, state.Position, "tick %d", tick)
		} else {
			require.Greater(t, state.Position, 0.0, "tick %d", tick)
			lot := lots[state.Symbol]
			assert.Zero(t, math.Mod(state.Position, lot), "tick %d: %v not a multiple of %v", tick, state.Position, lot)

			samePosition := state.Symbol == prevState.Symbol && state.EntryTick == prevState.EntryTick
			if samePosition {
				assert.GreaterOrEqual(t, state.TrailingStopPrice, prevState.TrailingStopPrice, "tick %d", tick)
			}
		}

		prev, prevState = stats, state
	}

	sum := sim.Summary()
	assert.Greater(t, sum.TradeCount, 0)
	assert.Len(t, sim.History(), sum.TradeCount)
	assert.GreaterOrEqual(t, sum.TotalProfit, 0.0)
	assert.GreaterOrEqual(t, sum.TotalLoss, 0.0)
}

func TestSimulator_Deterministic(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC"}
	u := randomWalk(t, 11, symbols, 1500)
	lots := domain.LotSizes{"AAA": 1, "BBB": 0.5, "CCC": 10}

	cfg := fullConfig()
	cfg.Side = domain.SideShort
	cfg.FeeRate = ptr(0.001)

	first := newSim(t, cfg, u, lots)
	require.NoError(t, first.Run(context.Background()))

	for run := 0; run < 3; run++ {
		again := newSim(t, cfg, u, lots)
		require.NoError(t, again.Run(context.Background()))

		assert.Equal(t, first.Summary(), again.Summary(), "run %d", run)
		assert.Equal(t, first.History(), again.History(), "run %d", run)
		assert.Equal(t, first.Trades(), again.Trades(), "run %d", run)
	}
}
