package simulation

import (
	"math"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
	"momentum-lab/internal/indicator"
)

// Scale-in fractions of the entry size.
const (
	scaleInStage1Fraction = 0.5
	scaleInStage2Fraction = 0.25
)

// State is the mutable trading state of one simulator.
// Entry and exit-level fields are meaningful only while Symbol is set.
type State struct {
	Tick     int
	Symbol   string  // "" = flat
	Position float64 // 0 iff flat; multiple of the symbol's lot size

	EntryPrice    float64
	EntryTick     int
	EntryNotional float64 // notional of the initial open
	CostBasis     float64 // notional of open plus scale-ins

	StopLossPrice     float64
	TrailingStopPrice float64
	ProfitStopPrice   float64
	AddPrice1         float64
	AddPrice2         float64
	Added1            bool
	Added2            bool

	Balance float64        // cash
	Value   float64        // balance plus marked position
	Banned  map[string]int // symbol -> tick of the losing close

	Paused bool // manual pause
	Halted bool // set by the drawdown kill-switch
}

// Statistics accumulate over the run and never reset.
type Statistics struct {
	TradeCount    int
	WinCount      int
	Streak        int
	MaxStreak     int
	LossStreak    int
	MaxLossStreak int

	ValuePeak      float64
	ValueValley    float64
	ProfitRate     float64
	ProfitRatePeak float64
	MaxDrawdown    float64

	MaxTradeProfitRate float64
	MaxTradeLossRate   float64 // most negative per-trade rate
	TotalProfit        float64
	TotalLoss          float64

	KillSwitch bool
}

// open selects a symbol and enters a position at the current tick.
func (s *Simulator) open() error {
	if s.state.Paused || s.state.Halted {
		return ErrOpenSuppressed
	}
	s.purgeBans()

	symbol, err := s.selector.Select(s.query(), s.state.Banned)
	if err != nil {
		return err
	}

	series, _ := s.universe.Series(symbol)
	lot := s.lots[symbol]
	tick := s.state.Tick
	price := series[tick]

	size := domain.Quantize(math.Floor(s.state.Balance/(1+s.fee)*s.cfg.Leverage/price), lot)
	if size <= 0 {
		return ErrInsufficientBalance
	}
	notional := size * price

	st := &s.state
	st.Symbol = symbol
	st.Position = size
	st.EntryPrice = price
	st.EntryTick = tick
	st.EntryNotional = notional
	st.CostBasis = notional
	st.Balance -= notional * (1 + s.fee)
	st.TrailingStopPrice = indicator.InitialTrailingStop(s.cfg.Side)
	st.Added1, st.Added2 = false, false

	st.StopLossPrice = s.offset(price, -s.cfg.StopLossRate)
	if p := s.cfg.ProfitTarget; p != nil {
		st.ProfitStopPrice = s.offset(price, p.Rate)
	}
	if a := s.cfg.ScaleIn; a != nil {
		if a.Stage1Rate != nil {
			st.AddPrice1 = s.offset(price, *a.Stage1Rate)
		}
		if a.Stage2Rate != nil {
			st.AddPrice2 = s.offset(price, *a.Stage2Rate)
		}
	}

	s.series = series
	s.lot = lot

	s.logger.Debug().
		Int("tick", tick).
		Str("symbol", symbol).
		Float64("price", price).
		Float64("position", size).
		Msg("position opened")
	return nil
}

// offset returns price moved by rate in the favourable direction of the side;
// a negative rate moves against it.
func (s *Simulator) offset(price, rate float64) float64 {
	if s.cfg.Side == domain.SideShort {
		return price * (1 - rate)
	}
	return price * (1 + rate)
}

// purgeBans drops ban entries whose cooldown has elapsed.
func (s *Simulator) purgeBans() {
	cooldown := s.cfg.Cooldown()
	for symbol, bannedAt := range s.state.Banned {
		if s.state.Tick-bannedAt >= cooldown {
			delete(s.state.Banned, symbol)
		}
	}
}

// mark returns the position's value at price.
// Long: position*price. Short: cost basis plus the gain from the fall; a
// short is marked against what was paid in, so a falling price raises the
// account value instead of lowering it.
func (s *Simulator) mark(price float64) float64 {
	if s.flat() {
		return 0
	}
	if s.cfg.Side == domain.SideShort {
		return 2*s.state.CostBasis - s.state.Position*price
	}
	return s.state.Position * price
}

// revalue refreshes account value, the trailing stop and drawdown.
// Stop-loss and profit-stop levels are fixed at entry.
func (s *Simulator) revalue(price float64) {
	if t := s.cfg.Trailing; t != nil {
		s.state.TrailingStopPrice = indicator.UpdateTrailingStop(s.cfg.Side, price, s.state.TrailingStopPrice, t.Rate)
	}
	s.updateValue(price)
}

func (s *Simulator) updateValue(price float64) {
	st := &s.stats
	s.state.Value = s.state.Balance + s.mark(price)
	st.ValuePeak = math.Max(st.ValuePeak, s.state.Value)
	st.ValueValley = math.Min(st.ValueValley, s.state.Value)
	st.ProfitRate = s.state.Value/s.cfg.InitialBalance - 1
	st.ProfitRatePeak = math.Max(st.ProfitRatePeak, st.ProfitRate)
	st.MaxDrawdown = indicator.UpdateMaxDrawdown(s.state.Value, st.ValuePeak, st.MaxDrawdown)
}

// breached reports whether price is at or beyond an adverse level.
func (s *Simulator) breached(price, level float64) bool {
	if s.cfg.Side == domain.SideShort {
		return price >= level
	}
	return price <= level
}

// reached reports whether price is at or beyond a favourable level.
func (s *Simulator) reached(price, level float64) bool {
	if s.cfg.Side == domain.SideShort {
		return price <= level
	}
	return price >= level
}

// closeTrigger returns the first nominal exit condition that holds.
func (s *Simulator) closeTrigger(price float64) (string, bool) {
	elapsed := s.state.Tick - s.state.EntryTick

	if elapsed >= s.cfg.MaxHoldTicks {
		return domain.ExitReasonMaxHold, true
	}
	if s.breached(price, s.state.StopLossPrice) {
		return domain.ExitReasonStopLoss, true
	}
	if t := s.cfg.Trailing; t != nil && elapsed >= t.DelayTicks && s.breached(price, s.state.TrailingStopPrice) {
		return domain.ExitReasonTrailingStop, true
	}
	if p := s.cfg.ProfitTarget; p != nil && elapsed >= p.DelayTicks && s.breached(price, s.state.ProfitStopPrice) {
		return domain.ExitReasonProfitStop, true
	}
	return "", false
}

// shouldRotate decides whether a triggered close goes ahead. A position that
// is still the selector's pick and still in profit stays open.
func (s *Simulator) shouldRotate(price float64) bool {
	pick, err := s.selector.Select(s.query(), nil)
	if err != nil {
		pick = ""
	}
	return pick != s.state.Symbol || !s.inProfit(price)
}

// inProfit reports whether price is strictly better than the entry price.
func (s *Simulator) inProfit(price float64) bool {
	if s.cfg.Side == domain.SideShort {
		return price < s.state.EntryPrice
	}
	return price > s.state.EntryPrice
}

// close realizes the position at price and returns the account to flat.
func (s *Simulator) close(price float64, reason string) {
	st := &s.state
	stats := &s.stats
	tick := st.Tick

	markValue := s.mark(price)
	win := s.inProfit(price)
	var gross, rate float64
	if s.cfg.Side == domain.SideShort {
		gross = st.Position * (st.EntryPrice - price)
		rate = st.EntryPrice/price - 1
	} else {
		gross = st.Position * (price - st.EntryPrice)
		rate = price/st.EntryPrice - 1
	}

	stats.TradeCount++
	outcome := domain.OutcomeClassLoss
	if win {
		outcome = domain.OutcomeClassWin
		stats.WinCount++
		stats.Streak++
		stats.MaxStreak = max(stats.MaxStreak, stats.Streak)
		stats.LossStreak = 0
		stats.MaxTradeProfitRate = math.Max(stats.MaxTradeProfitRate, rate)
		stats.TotalProfit += gross
	} else {
		stats.LossStreak++
		stats.MaxLossStreak = max(stats.MaxLossStreak, stats.LossStreak)
		stats.Streak = 0
		stats.MaxTradeLossRate = math.Min(stats.MaxTradeLossRate, rate)
		stats.TotalLoss -= gross
		st.Banned[st.Symbol] = tick
	}

	st.Balance += markValue - st.Position*price*s.fee

	trade := &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(s.configID, st.Symbol, st.EntryTick, tick),
		ConfigID:     s.configID,
		Symbol:       st.Symbol,
		Side:         s.cfg.Side,
		EntryTick:    st.EntryTick,
		EntryPrice:   st.EntryPrice,
		Position:     st.Position,
		CostBasis:    st.CostBasis,
		ScaleIns:     boolToInt(st.Added1) + boolToInt(st.Added2),
		ExitTick:     tick,
		ExitPrice:    price,
		ExitReason:   reason,
		RealizedPnL:  markValue - st.CostBasis,
		ProfitRate:   rate,
		OutcomeClass: outcome,
	}

	s.logger.Debug().
		Int("tick", tick).
		Str("symbol", st.Symbol).
		Str("reason", reason).
		Float64("price", price).
		Float64("trade_rate", rate).
		Msg("position closed")

	st.Symbol = ""
	st.Position = 0
	st.EntryPrice = 0
	st.EntryTick = 0
	st.EntryNotional = 0
	st.CostBasis = 0
	st.StopLossPrice = 0
	st.TrailingStopPrice = 0
	st.ProfitStopPrice = 0
	st.AddPrice1 = 0
	st.AddPrice2 = 0
	st.Added1 = false
	st.Added2 = false
	s.series = nil
	s.lot = 0

	s.updateValue(price)
	trade.AccountProfitRate = stats.ProfitRate
	s.trades = append(s.trades, trade)
	s.history = append(s.history, domain.HistoryPoint{Tick: tick, ProfitRate: stats.ProfitRate})
}

// scaleIn executes any add-position stage whose level price has reached.
// Each stage fires at most once per position.
func (s *Simulator) scaleIn(price float64) int {
	a := s.cfg.ScaleIn
	if a == nil {
		return 0
	}

	n := 0
	if a.Stage1Rate != nil && !s.state.Added1 && s.reached(price, s.state.AddPrice1) {
		s.add(price, scaleInStage1Fraction)
		s.state.Added1 = true
		n++
	}
	if a.Stage2Rate != nil && !s.state.Added2 && s.reached(price, s.state.AddPrice2) {
		s.add(price, scaleInStage2Fraction)
		s.state.Added2 = true
		n++
	}
	return n
}

// add grows the position by a fraction of the entry notional, re-priced at
// price. EntryNotional already carries the leverage of the open.
// A size that quantizes to zero still consumes the stage.
func (s *Simulator) add(price, fraction float64) {
	size := domain.Quantize(fraction*math.Floor(s.state.EntryNotional/price), s.lot)
	if size <= 0 {
		return
	}
	s.state.Position += size
	s.state.CostBasis += size * price
	s.state.Balance -= size * price * (1 + s.fee)

	s.logger.Debug().
		Int("tick", s.state.Tick).
		Str("symbol", s.state.Symbol).
		Float64("added", size).
		Msg("position scaled in")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
