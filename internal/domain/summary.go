package domain

// Summary is the read-only report produced after a run.
// Undefined ratios are nil: WinRate when TradeCount == 0,
// ProfitFactor when TotalLoss == 0.
type Summary struct {
	TradeCount int      `json:"trade_count"`
	WinCount   int      `json:"win_count"`
	WinRate    *float64 `json:"win_rate"`

	LowestValue     float64 `json:"lowest_value"`
	FinalValue      float64 `json:"final_value"`
	ProfitRatePeak  float64 `json:"profit_rate_peak"`
	FinalProfitRate float64 `json:"final_profit_rate"`

	MaxProfitRateSingleTrade float64 `json:"max_profit_rate_single_trade"`
	MaxLossRateSingleTrade   float64 `json:"max_loss_rate_single_trade"` // most negative per-trade rate
	MaxStreak                int     `json:"max_streak"`
	MaxLossStreak            int     `json:"max_loss_streak"`
	MaxDrawdown              float64 `json:"max_drawdown"`

	TotalProfit  float64  `json:"total_profit"`
	TotalLoss    float64  `json:"total_loss"`
	ProfitFactor *float64 `json:"profit_factor"`

	KillSwitchTriggered bool `json:"kill_switch_triggered"`
}

// HistoryPoint is one entry of the trade-history log, recorded at each close.
type HistoryPoint struct {
	Tick       int     `json:"tick"`
	ProfitRate float64 `json:"profit_rate"`
}

// RunResult bundles everything a finished run produces.
// Corresponds to run_results table in PostgreSQL.
type RunResult struct {
	SweepID  string           // sweep this run belongs to
	ConfigID string           // deterministic parameter set identifier
	Config   SimulationConfig // parameters
	Summary  Summary          // report
	History  []HistoryPoint   // equity curve points
	Trades   []*TradeRecord   // closed positions
}
