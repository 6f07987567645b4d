package domain

// TradeRecord represents one closed position of a simulation run.
// Corresponds to trade_records table in PostgreSQL.
type TradeRecord struct {
	TradeID  string // deterministic hash
	ConfigID string // parameter set identifier
	Symbol   string // traded asset
	Side     Side   // long | short

	// Entry
	EntryTick  int     // tick of the initial open
	EntryPrice float64 // price at the initial open
	Position   float64 // final size including scale-ins
	CostBasis  float64 // notional paid, excluding fees
	ScaleIns   int     // number of add-position stages executed

	// Exit
	ExitTick   int     // tick of the close
	ExitPrice  float64 // price at the close
	ExitReason string  // reason code

	// Outcome
	RealizedPnL       float64 // mark value at exit minus cost basis, before fees
	ProfitRate        float64 // side-adjusted price change of the trade
	OutcomeClass      string  // "WIN" | "LOSS"
	AccountProfitRate float64 // account profit rate logged at this close
}

// Exit reason codes
const (
	ExitReasonMaxHold      = "MAX_HOLD"
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonProfitStop   = "PROFIT_STOP"
	ExitReasonKillSwitch   = "KILL_SWITCH"
)

// Outcome class constants
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)
