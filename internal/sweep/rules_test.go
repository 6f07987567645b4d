package sweep

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
)

func TestRange_Points(t *testing.T) {
	assert.Equal(t, 1, Range{5, 5, 1}.points())
	assert.Equal(t, 11, Range{0, 1, 0.1}.points())
	assert.Equal(t, 3, Range{1, 3.5, 1}.points())
}

func TestGenerate_Deterministic(t *testing.T) {
	rules := DefaultRules()

	a, err := Generate(rules, 50, 42)
	require.NoError(t, err)
	b, err := Generate(rules, 50, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Generate(rules, 50, 43)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerate_SamplesOnGrid(t *testing.T) {
	rules := DefaultRules()
	configs, err := Generate(rules, 200, 7)
	require.NoError(t, err)
	require.Len(t, configs, 200)

	for _, cfg := range configs {
		assert.Equal(t, domain.SideLong, cfg.Side)
		assert.Equal(t, 10000.0, cfg.InitialBalance)
		assert.GreaterOrEqual(t, cfg.Leverage, rules.Leverage.Min)
		assert.LessOrEqual(t, cfg.Leverage, rules.Leverage.Max)
		assert.Zero(t, cfg.LookbackTicks%12, "lookback %d not a whole hour", cfg.LookbackTicks)
		assert.GreaterOrEqual(t, cfg.MaxHoldTicks, 600)
		assert.LessOrEqual(t, cfg.MaxHoldTicks, 2016)

		require.NotNil(t, cfg.Trailing)
		require.NotNil(t, cfg.ProfitTarget)
		require.NotNil(t, cfg.ScaleIn)
		require.NotNil(t, cfg.ScaleIn.Stage1Rate)
		require.NotNil(t, cfg.ScaleIn.Stage2Rate)
		require.NotNil(t, cfg.CooldownTicks)
		assert.Nil(t, cfg.MaxDrawdown)

		assert.NoError(t, cfg.Validate())
	}
}

func TestGenerate_FixedRanges(t *testing.T) {
	rules := Rules{
		Rank:           1,
		Side:           domain.SideShort,
		InitialBalance: 500,
		Leverage:       *Fixed(2),
		LookbackTicks:  *Fixed(10),
		MaxHoldTicks:   *Fixed(20),
		StopLossRate:   *Fixed(0.05),
		MaxDrawdown:    Fixed(0.3),
	}

	configs, err := Generate(rules, 3, 1)
	require.NoError(t, err)
	for _, cfg := range configs {
		assert.Equal(t, 1, cfg.Rank)
		assert.Equal(t, domain.SideShort, cfg.Side)
		assert.Equal(t, 2.0, cfg.Leverage)
		assert.Equal(t, 10, cfg.LookbackTicks)
		assert.Equal(t, 20, cfg.MaxHoldTicks)
		assert.Equal(t, 0.05, cfg.StopLossRate)
		assert.Nil(t, cfg.Trailing)
		assert.Nil(t, cfg.ProfitTarget)
		assert.Nil(t, cfg.ScaleIn)
		assert.Nil(t, cfg.CooldownTicks)
		assert.Nil(t, cfg.MinMomentum)
		require.NotNil(t, cfg.MaxDrawdown)
		assert.Equal(t, 0.3, *cfg.MaxDrawdown)
	}
}

func TestUnique(t *testing.T) {
	rules := Rules{
		Side:           domain.SideLong,
		InitialBalance: 1000,
		Leverage:       Range{1, 2, 1},
		LookbackTicks:  *Fixed(10),
		MaxHoldTicks:   *Fixed(20),
		StopLossRate:   *Fixed(0.05),
	}

	configs, err := Generate(rules, 20, 3)
	require.NoError(t, err)

	unique := Unique(configs)
	assert.LessOrEqual(t, len(unique), 2)
	assert.NotEmpty(t, unique)
	assert.Equal(t, configs[0], unique[0])
	if len(unique) == 2 {
		assert.NotEqual(t, unique[0].Leverage, unique[1].Leverage)
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(DefaultRules(), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidCount)

	tests := []struct {
		name   string
		mutate func(*Rules)
		want   error
	}{
		{"bad side", func(r *Rules) { r.Side = "sideways" }, domain.ErrInvalidSide},
		{"zero balance", func(r *Rules) { r.InitialBalance = 0 }, ErrInvalidRange},
		{"zero step", func(r *Rules) { r.Leverage.Step = 0 }, ErrInvalidRange},
		{"max below min", func(r *Rules) { r.StopLossRate = Range{0.1, 0.05, 0.01} }, ErrInvalidRange},
		{"bad optional", func(r *Rules) { r.CooldownTicks = &Range{1, 2, -1} }, ErrInvalidRange},
		{"unpaired trailing", func(r *Rules) { r.TrailingRate = nil }, ErrInvalidRange},
		{"unpaired profit", func(r *Rules) { r.ProfitDelayTicks = nil }, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultRules()
			tt.mutate(&rules)
			_, err := Generate(rules, 1, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
