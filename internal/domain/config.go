package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultFeeRate is the flat trading fee applied when SimulationConfig.FeeRate is nil.
const DefaultFeeRate = 0.0005

// Config errors
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrInvalidSide   = errors.New("side must be long or short")
)

// TrailingRule enables the trailing stop.
type TrailingRule struct {
	DelayTicks int     `json:"delay_ticks" yaml:"delay_ticks"` // ticks held before the stop may fire
	Rate       float64 `json:"rate" yaml:"rate"`               // distance from price (0.05 = 5%)
}

// ProfitTargetRule enables the profit stop.
type ProfitTargetRule struct {
	DelayTicks int     `json:"delay_ticks" yaml:"delay_ticks"` // ticks held before the stop may fire
	Rate       float64 `json:"rate" yaml:"rate"`               // offset from entry price
}

// ScaleInRule enables the one-shot position adds. Either stage may be nil.
type ScaleInRule struct {
	Stage1Rate *float64 `json:"stage1_rate,omitempty" yaml:"stage1_rate,omitempty"` // adds half the entry size
	Stage2Rate *float64 `json:"stage2_rate,omitempty" yaml:"stage2_rate,omitempty"` // adds a quarter of the entry size
}

// SimulationConfig is the immutable parameter set of one simulation run.
// Nil optional fields disable the corresponding rule.
type SimulationConfig struct {
	// Required
	Rank           int     `json:"rank" yaml:"rank"`                       // 0 = best candidate
	Side           Side    `json:"side" yaml:"side"`                       // long | short
	Leverage       float64 `json:"leverage" yaml:"leverage"`               // position multiplier
	LookbackTicks  int     `json:"lookback_ticks" yaml:"lookback_ticks"`   // momentum window
	MaxHoldTicks   int     `json:"max_hold_ticks" yaml:"max_hold_ticks"`   // hold duration before re-check
	StopLossRate   float64 `json:"stop_loss_rate" yaml:"stop_loss_rate"`   // fixed stop offset from entry
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"` // starting cash, also profit-rate base

	// Optional
	Trailing      *TrailingRule     `json:"trailing,omitempty" yaml:"trailing,omitempty"`
	ProfitTarget  *ProfitTargetRule `json:"profit_target,omitempty" yaml:"profit_target,omitempty"`
	ScaleIn       *ScaleInRule      `json:"scale_in,omitempty" yaml:"scale_in,omitempty"`
	CooldownTicks *int              `json:"cooldown_ticks,omitempty" yaml:"cooldown_ticks,omitempty"` // ban duration after a losing close
	MinMomentum   *float64          `json:"min_momentum,omitempty" yaml:"min_momentum,omitempty"`     // strict lower bound on momentum
	MaxDrawdown   *float64          `json:"max_drawdown,omitempty" yaml:"max_drawdown,omitempty"`     // kill-switch threshold
	FeeRate       *float64          `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`             // nil = DefaultFeeRate
}

// Fee returns the configured fee rate or DefaultFeeRate.
func (c SimulationConfig) Fee() float64 {
	if c.FeeRate == nil {
		return DefaultFeeRate
	}
	return *c.FeeRate
}

// MomentumFloor returns the minimum momentum, or -Inf when the filter is disabled.
func (c SimulationConfig) MomentumFloor() float64 {
	if c.MinMomentum == nil {
		return math.Inf(-1)
	}
	return *c.MinMomentum
}

// Cooldown returns the ban duration in ticks; 0 when disabled.
func (c SimulationConfig) Cooldown() int {
	if c.CooldownTicks == nil {
		return 0
	}
	return *c.CooldownTicks
}

// ConfigError lists every structural problem found by Validate.
type ConfigError struct {
	Problems []string
	badSide  bool
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

// Unwrap exposes ErrInvalidConfig, and ErrInvalidSide when the side was rejected.
func (e *ConfigError) Unwrap() []error {
	if e.badSide {
		return []error{ErrInvalidConfig, ErrInvalidSide}
	}
	return []error{ErrInvalidConfig}
}

// Validate checks the config once, before any tick is processed.
// Returns *ConfigError or nil.
func (c SimulationConfig) Validate() error {
	e := &ConfigError{}
	add := func(format string, args ...any) {
		e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
	}

	if !c.Side.IsValid() {
		e.badSide = true
		add("side %q: must be long or short", c.Side)
	}
	if c.Rank < 0 {
		add("rank %d: must be >= 0", c.Rank)
	}
	if !positive(c.Leverage) {
		add("leverage %v: must be > 0", c.Leverage)
	}
	if c.LookbackTicks <= 0 {
		add("lookback_ticks %d: must be > 0", c.LookbackTicks)
	}
	if c.MaxHoldTicks <= 0 {
		add("max_hold_ticks %d: must be > 0", c.MaxHoldTicks)
	}
	if !positive(c.StopLossRate) {
		add("stop_loss_rate %v: must be > 0", c.StopLossRate)
	} else if c.Side == SideLong && c.StopLossRate >= 1 {
		add("stop_loss_rate %v: must be < 1 for long", c.StopLossRate)
	}
	if !positive(c.InitialBalance) {
		add("initial_balance %v: must be > 0", c.InitialBalance)
	}

	if t := c.Trailing; t != nil {
		if t.DelayTicks < 0 {
			add("trailing.delay_ticks %d: must be >= 0", t.DelayTicks)
		}
		if !positive(t.Rate) {
			add("trailing.rate %v: must be > 0", t.Rate)
		} else if c.Side == SideLong && t.Rate >= 1 {
			add("trailing.rate %v: must be < 1 for long", t.Rate)
		}
	}
	if p := c.ProfitTarget; p != nil {
		if p.DelayTicks < 0 {
			add("profit_target.delay_ticks %d: must be >= 0", p.DelayTicks)
		}
		if !positive(p.Rate) {
			add("profit_target.rate %v: must be > 0", p.Rate)
		} else if c.Side == SideShort && p.Rate >= 1 {
			add("profit_target.rate %v: must be < 1 for short", p.Rate)
		}
	}
	if s := c.ScaleIn; s != nil {
		for i, r := range []*float64{s.Stage1Rate, s.Stage2Rate} {
			if r == nil {
				continue
			}
			if !positive(*r) {
				add("scale_in.stage%d_rate %v: must be > 0", i+1, *r)
			} else if c.Side == SideShort && *r >= 1 {
				add("scale_in.stage%d_rate %v: must be < 1 for short", i+1, *r)
			}
		}
	}
	if c.CooldownTicks != nil && *c.CooldownTicks < 0 {
		add("cooldown_ticks %d: must be >= 0", *c.CooldownTicks)
	}
	if c.MinMomentum != nil && math.IsNaN(*c.MinMomentum) {
		add("min_momentum: must be a number")
	}
	if c.MaxDrawdown != nil && !positive(*c.MaxDrawdown) {
		add("max_drawdown %v: must be > 0", *c.MaxDrawdown)
	}
	if c.FeeRate != nil && (*c.FeeRate < 0 || *c.FeeRate >= 1 || math.IsNaN(*c.FeeRate)) {
		add("fee_rate %v: must be in [0, 1)", *c.FeeRate)
	}

	if len(e.Problems) > 0 {
		return e
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
