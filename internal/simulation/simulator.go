// Package simulation drives a single leveraged position tick by tick under
// one SimulationConfig.
package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
	"momentum-lab/internal/selection"
)

// Simulator errors
var (
	// ErrNoEligibleAsset means the selector found no candidate this tick.
	ErrNoEligibleAsset = selection.ErrNoEligibleAsset

	// ErrOpenSuppressed means opening is not permitted right now.
	ErrOpenSuppressed = errors.New("open suppressed")

	// ErrInsufficientBalance means the quantized entry size rounds to zero.
	ErrInsufficientBalance = fmt.Errorf("%w: position rounds to zero", ErrOpenSuppressed)

	// ErrTickOutOfRange means Step was called outside [0, history length).
	ErrTickOutOfRange = errors.New("tick out of range")

	ErrNilUniverse  = errors.New("universe is nil")
	ErrTicksInRange = errors.New("ticks exceed universe length")
	ErrAlreadyRun   = errors.New("simulator already run")
)

// ctxCheckInterval is how many ticks Run processes between context checks.
const ctxCheckInterval = 4096

// Options contains optional settings for New.
type Options struct {
	Logger *zerolog.Logger // nil = no logging
	Ticks  int             // history length; 0 = universe length
}

// Outcome reports what one Step did. Expected non-events (nothing to open,
// opening paused) are carried in Blocked rather than returned as errors.
type Outcome struct {
	Opens      int    // positions opened this tick (0-2)
	Closes     int    // positions closed this tick (0-1)
	Reason     string // exit reason of the close, if any
	ScaleIns   int    // add-position stages executed
	KillSwitch bool   // drawdown kill-switch fired
	Blocked    error  // why an open attempt left the account flat
}

// Simulator owns the configuration, trading state and statistics of one run.
// It is single-threaded; run many Simulators in parallel over a shared
// Universe and LotSizes instead.
type Simulator struct {
	cfg      domain.SimulationConfig
	configID string
	fee      float64
	ticks    int

	universe *domain.Universe
	lots     domain.LotSizes
	selector *selection.Selector
	logger   zerolog.Logger

	state   State
	series  []float64 // held symbol's prices
	lot     float64   // held symbol's lot size
	stats   Statistics
	history []domain.HistoryPoint
	trades  []*domain.TradeRecord
	ran     bool
}

// New validates cfg and the lot table and returns a flat simulator.
// Configuration problems are returned here, before any tick runs.
func New(cfg domain.SimulationConfig, u *domain.Universe, lots domain.LotSizes, opts Options) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNilUniverse
	}
	if err := lots.Validate(u); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	ticks := opts.Ticks
	if ticks == 0 {
		ticks = u.Len()
	}
	if ticks < 0 || ticks > u.Len() {
		return nil, fmt.Errorf("%w: %d > %d", ErrTicksInRange, ticks, u.Len())
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	configID := idhash.ComputeConfigID(cfg)

	return &Simulator{
		cfg:      cfg,
		configID: configID,
		fee:      cfg.Fee(),
		ticks:    ticks,
		universe: u,
		lots:     lots,
		selector: selection.NewSelector(u),
		logger:   logger.With().Str("component", "simulator").Str("config_id", configID).Logger(),
		state: State{
			Balance: cfg.InitialBalance,
			Value:   cfg.InitialBalance,
			Banned:  make(map[string]int),
		},
		stats: Statistics{
			ValuePeak:   cfg.InitialBalance,
			ValueValley: cfg.InitialBalance,
		},
	}, nil
}

// ConfigID returns the deterministic identifier of the configuration.
func (s *Simulator) ConfigID() string {
	return s.configID
}

// Config returns the configuration.
func (s *Simulator) Config() domain.SimulationConfig {
	return s.cfg
}

// SetPaused toggles the manual pause. While paused, open attempts return
// ErrOpenSuppressed; a held position is still managed.
func (s *Simulator) SetPaused(paused bool) {
	s.state.Paused = paused
}

// Run steps through every tick from 0 to the history length.
// A flat account keeps trying to open on every tick; the run only ends
// when ticks are exhausted or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true

	for tick := 0; tick < s.ticks; tick++ {
		if tick%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s.Step(tick)
	}

	s.logger.Debug().
		Int("trades", s.stats.TradeCount).
		Float64("profit_rate", s.stats.ProfitRate).
		Msg("run finished")
	return nil
}

// Step evaluates one tick. Ticks must be stepped in increasing order.
// A tick outside the history leaves the simulator untouched and reports
// ErrTickOutOfRange in Blocked.
//
// Order: open if flat, revalue, drawdown kill-switch, close evaluation,
// re-open if flat, then scale-in.
func (s *Simulator) Step(tick int) Outcome {
	var out Outcome
	if tick < 0 || tick >= s.ticks {
		out.Blocked = fmt.Errorf("%w: %d not in [0, %d)", ErrTickOutOfRange, tick, s.ticks)
		return out
	}
	s.state.Tick = tick

	if s.flat() {
		if err := s.open(); err != nil {
			out.Blocked = err
			return out
		}
		out.Opens++
	}

	price := s.series[tick]
	s.revalue(price)

	if s.cfg.MaxDrawdown != nil && s.stats.MaxDrawdown > *s.cfg.MaxDrawdown {
		s.close(price, domain.ExitReasonKillSwitch)
		s.state.Halted = true
		s.stats.KillSwitch = true
		out.Closes++
		out.Reason = domain.ExitReasonKillSwitch
		out.KillSwitch = true
		s.logger.Debug().Int("tick", tick).Float64("max_drawdown", s.stats.MaxDrawdown).Msg("kill-switch fired")
		return out
	}

	if reason, triggered := s.closeTrigger(price); triggered && s.shouldRotate(price) {
		s.close(price, reason)
		out.Closes++
		out.Reason = reason
	}

	if s.flat() {
		if err := s.open(); err != nil {
			out.Blocked = err
		} else {
			out.Opens++
		}
		return out
	}

	out.ScaleIns = s.scaleIn(price)
	return out
}

// Summary builds the report. It does not modify the simulator.
func (s *Simulator) Summary() domain.Summary {
	st := s.stats
	sum := domain.Summary{
		TradeCount:               st.TradeCount,
		WinCount:                 st.WinCount,
		LowestValue:              st.ValueValley,
		FinalValue:               s.state.Value,
		ProfitRatePeak:           st.ProfitRatePeak,
		FinalProfitRate:          st.ProfitRate,
		MaxProfitRateSingleTrade: st.MaxTradeProfitRate,
		MaxLossRateSingleTrade:   st.MaxTradeLossRate,
		MaxStreak:                st.MaxStreak,
		MaxLossStreak:            st.MaxLossStreak,
		MaxDrawdown:              st.MaxDrawdown,
		TotalProfit:              st.TotalProfit,
		TotalLoss:                st.TotalLoss,
		KillSwitchTriggered:      st.KillSwitch,
	}
	if st.TradeCount > 0 {
		winRate := float64(st.WinCount) / float64(st.TradeCount)
		sum.WinRate = &winRate
	}
	if st.TotalLoss != 0 {
		pf := st.TotalProfit / st.TotalLoss
		sum.ProfitFactor = &pf
	}
	return sum
}

// History returns a copy of the (tick, profit rate) log recorded at each close.
func (s *Simulator) History() []domain.HistoryPoint {
	return append([]domain.HistoryPoint(nil), s.history...)
}

// Trades returns copies of the closed trade records.
func (s *Simulator) Trades() []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, len(s.trades))
	for i, t := range s.trades {
		tc := *t
		out[i] = &tc
	}
	return out
}

// Statistics returns a copy of the accumulated statistics.
func (s *Simulator) Statistics() Statistics {
	return s.stats
}

// State returns a snapshot of the trading state.
func (s *Simulator) State() State {
	st := s.state
	st.Banned = make(map[string]int, len(s.state.Banned))
	for k, v := range s.state.Banned {
		st.Banned[k] = v
	}
	return st
}

// Result packages the run output for persistence.
func (s *Simulator) Result(sweepID string) *domain.RunResult {
	return &domain.RunResult{
		SweepID:  sweepID,
		ConfigID: s.configID,
		Config:   s.cfg,
		Summary:  s.Summary(),
		History:  s.History(),
		Trades:   s.Trades(),
	}
}

func (s *Simulator) flat() bool {
	return s.state.Symbol == ""
}

func (s *Simulator) query() selection.Query {
	return selection.Query{
		Side:          s.cfg.Side,
		Rank:          s.cfg.Rank,
		LookbackTicks: s.cfg.LookbackTicks,
		Tick:          s.state.Tick,
		MinMomentum:   s.cfg.MomentumFloor(),
	}
}
