// Package sweep samples parameter sets and runs them in parallel over a
// shared universe.
package sweep

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
)

// Rules errors
var (
	ErrInvalidRange = errors.New("invalid range")
	ErrInvalidCount = errors.New("sample count must be > 0")
)

// Range is the inclusive grid Min, Min+Step, ..., <= Max.
type Range struct {
	Min  float64 `mapstructure:"min" yaml:"min"`
	Max  float64 `mapstructure:"max" yaml:"max"`
	Step float64 `mapstructure:"step" yaml:"step"`
}

// Fixed returns a single-point range.
func Fixed(v float64) *Range {
	return &Range{Min: v, Max: v, Step: 1}
}

// points returns the number of grid points.
func (r Range) points() int {
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}

func (r Range) validate(name string) error {
	if !(r.Step > 0) || r.Max < r.Min || math.IsNaN(r.Min) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: %s [%v, %v] step %v", ErrInvalidRange, name, r.Min, r.Max, r.Step)
	}
	return nil
}

// sample draws a uniform grid point. The result is rounded to 1e-9 so
// grid values print cleanly.
func (r Range) sample(rng *rand.Rand) float64 {
	v := r.Min + float64(rng.Intn(r.points()))*r.Step
	return math.Round(v*1e9) / 1e9
}

// Rules describe the parameter space of a sweep. Required ranges are values;
// a nil optional range disables the corresponding rule in every sample.
type Rules struct {
	// Fixed for every sample
	Rank           int         `mapstructure:"rank" yaml:"rank"`
	Side           domain.Side `mapstructure:"side" yaml:"side"`
	InitialBalance float64     `mapstructure:"initial_balance" yaml:"initial_balance"`
	FeeRate        *float64    `mapstructure:"fee_rate" yaml:"fee_rate,omitempty"`

	// Required
	Leverage      Range `mapstructure:"leverage" yaml:"leverage"`
	LookbackTicks Range `mapstructure:"lookback_ticks" yaml:"lookback_ticks"`
	MaxHoldTicks  Range `mapstructure:"max_hold_ticks" yaml:"max_hold_ticks"`
	StopLossRate  Range `mapstructure:"stop_loss_rate" yaml:"stop_loss_rate"`

	// Optional; the delay/rate pairs must be set together
	TrailingDelayTicks *Range `mapstructure:"trailing_delay_ticks" yaml:"trailing_delay_ticks,omitempty"`
	TrailingRate       *Range `mapstructure:"trailing_rate" yaml:"trailing_rate,omitempty"`
	ProfitDelayTicks   *Range `mapstructure:"profit_delay_ticks" yaml:"profit_delay_ticks,omitempty"`
	ProfitRate         *Range `mapstructure:"profit_rate" yaml:"profit_rate,omitempty"`
	MinMomentum        *Range `mapstructure:"min_momentum" yaml:"min_momentum,omitempty"`
	AddRate1           *Range `mapstructure:"add_rate1" yaml:"add_rate1,omitempty"`
	AddRate2           *Range `mapstructure:"add_rate2" yaml:"add_rate2,omitempty"`
	CooldownTicks      *Range `mapstructure:"cooldown_ticks" yaml:"cooldown_ticks,omitempty"`
	MaxDrawdown        *Range `mapstructure:"max_drawdown" yaml:"max_drawdown,omitempty"`
}

// DefaultRules is the long-side search space on 5-minute ticks (12 per hour).
func DefaultRules() Rules {
	const hour = 12
	return Rules{
		Rank:           0,
		Side:           domain.SideLong,
		InitialBalance: 10000,

		Leverage:      Range{1, 3.3, 0.1},
		LookbackTicks: Range{50 * hour, 168 * hour, hour},
		MaxHoldTicks:  Range{50 * hour, 168 * hour, hour},
		StopLossRate:  Range{0.05, 0.1, 0.005},

		TrailingDelayTicks: &Range{50 * hour, 120 * hour, hour},
		TrailingRate:       &Range{0.035, 0.08, 0.005},
		ProfitDelayTicks:   &Range{6 * hour, 24 * hour, hour},
		ProfitRate:         &Range{0.02, 0.05, 0.001},
		MinMomentum:        &Range{0, 0.035, 0.001},
		AddRate1:           &Range{0.1, 0.15, 0.002},
		AddRate2:           &Range{0.18, 0.23, 0.002},
		CooldownTicks:      &Range{48 * hour, 120 * hour, hour},
	}
}

// Validate checks the fixed fields, every range and the delay/rate pairing.
func (r Rules) Validate() error {
	if !r.Side.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSide, r.Side)
	}
	if !(r.InitialBalance > 0) {
		return fmt.Errorf("%w: initial_balance %v", ErrInvalidRange, r.InitialBalance)
	}

	required := []struct {
		name string
		rng  Range
	}{
		{"leverage", r.Leverage},
		{"lookback_ticks", r.LookbackTicks},
		{"max_hold_ticks", r.MaxHoldTicks},
		{"stop_loss_rate", r.StopLossRate},
	}
	for _, f := range required {
		if err := f.rng.validate(f.name); err != nil {
			return err
		}
	}

	optional := []struct {
		name string
		rng  *Range
	}{
		{"trailing_delay_ticks", r.TrailingDelayTicks},
		{"trailing_rate", r.TrailingRate},
		{"profit_delay_ticks", r.ProfitDelayTicks},
		{"profit_rate", r.ProfitRate},
		{"min_momentum", r.MinMomentum},
		{"add_rate1", r.AddRate1},
		{"add_rate2", r.AddRate2},
		{"cooldown_ticks", r.CooldownTicks},
		{"max_drawdown", r.MaxDrawdown},
	}
	for _, f := range optional {
		if f.rng == nil {
			continue
		}
		if err := f.rng.validate(f.name); err != nil {
			return err
		}
	}

	if (r.TrailingDelayTicks == nil) != (r.TrailingRate == nil) {
		return fmt.Errorf("%w: trailing_delay_ticks and trailing_rate must be set together", ErrInvalidRange)
	}
	if (r.ProfitDelayTicks == nil) != (r.ProfitRate == nil) {
		return fmt.Errorf("%w: profit_delay_ticks and profit_rate must be set together", ErrInvalidRange)
	}
	return nil
}

// Generate draws n parameter sets from rules. The same rules, n and seed
// always produce the same sets in the same order. Samples are not validated
// as SimulationConfigs; out-of-domain values surface per run.
func Generate(rules Rules, n int, seed int64) ([]domain.SimulationConfig, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	ticks := func(r Range) int { return int(math.Round(r.sample(rng))) }

	configs := make([]domain.SimulationConfig, n)
	for i := range configs {
		cfg := domain.SimulationConfig{
			Rank:           rules.Rank,
			Side:           rules.Side,
			InitialBalance: rules.InitialBalance,
			FeeRate:        rules.FeeRate,
			Leverage:       rules.Leverage.sample(rng),
			LookbackTicks:  ticks(rules.LookbackTicks),
			MaxHoldTicks:   ticks(rules.MaxHoldTicks),
			StopLossRate:   rules.StopLossRate.sample(rng),
		}

		if rules.TrailingDelayTicks != nil {
			cfg.Trailing = &domain.TrailingRule{
				DelayTicks: ticks(*rules.TrailingDelayTicks),
				Rate:       rules.TrailingRate.sample(rng),
			}
		}
		if rules.ProfitDelayTicks != nil {
			cfg.ProfitTarget = &domain.ProfitTargetRule{
				DelayTicks: ticks(*rules.ProfitDelayTicks),
				Rate:       rules.ProfitRate.sample(rng),
			}
		}
		if rules.MinMomentum != nil {
			v := rules.MinMomentum.sample(rng)
			cfg.MinMomentum = &v
		}
		if rules.AddRate1 != nil || rules.AddRate2 != nil {
			cfg.ScaleIn = &domain.ScaleInRule{}
			if rules.AddRate1 != nil {
				v := rules.AddRate1.sample(rng)
				cfg.ScaleIn.Stage1Rate = &v
			}
			if rules.AddRate2 != nil {
				v := rules.AddRate2.sample(rng)
				cfg.ScaleIn.Stage2Rate = &v
			}
		}
		if rules.CooldownTicks != nil {
			v := ticks(*rules.CooldownTicks)
			cfg.CooldownTicks = &v
		}
		if rules.MaxDrawdown != nil {
			v := rules.MaxDrawdown.sample(rng)
			cfg.MaxDrawdown = &v
		}

		configs[i] = cfg
	}

	return configs, nil
}

// Unique drops parameter sets whose config ID was already seen, keeping the
// first occurrence. Small grids sample the same point more than once, and
// stores key runs by (sweep, config ID).
func Unique(configs []domain.SimulationConfig) []domain.SimulationConfig {
	seen := make(map[string]struct{}, len(configs))
	out := make([]domain.SimulationConfig, 0, len(configs))
	for _, cfg := range configs {
		id := idhash.ComputeConfigID(cfg)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, cfg)
	}
	return out
}
