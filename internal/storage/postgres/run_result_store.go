package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// RunResultStore implements storage.RunResultStore using PostgreSQL.
// Summaries go to run_results, closed positions to trade_records.
type RunResultStore struct {
	pool *Pool
}

// NewRunResultStore creates a new RunResultStore.
func NewRunResultStore(pool *Pool) *RunResultStore {
	return &RunResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunResultStore = (*RunResultStore)(nil)

const runResultColumns = `
	sweep_id, config_id, config,
	trade_count, win_count, win_rate,
	lowest_value, final_value, profit_rate_peak, final_profit_rate,
	max_profit_rate_single_trade, max_loss_rate_single_trade,
	max_streak, max_loss_streak, max_drawdown,
	total_profit, total_loss, profit_factor,
	kill_switch_triggered
`

const tradeRecordColumns = `
	trade_id, config_id, symbol, side,
	entry_tick, entry_price, position, cost_basis, scale_ins,
	exit_tick, exit_price, exit_reason,
	realized_pnl, profit_rate, outcome_class, account_profit_rate
`

const insertTradeQuery = `
	INSERT INTO trade_records (sweep_id, seq, ` + tradeRecordColumns + `) VALUES (
		$1, $2,
		$3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14,
		$15, $16, $17, $18
	)
`

// Insert adds a run with its trades atomically.
// Returns ErrDuplicateKey if (sweep_id, config_id) exists.
func (s *RunResultStore) Insert(ctx context.Context, r *domain.RunResult) error {
	if r == nil || r.SweepID == "" || r.ConfigID == "" {
		return storage.ErrInvalidInput
	}

	config, err := sonic.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	for _, t := range r.Trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	sum := r.Summary
	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO run_results (`+runResultColumns+`) VALUES (
				$1, $2, $3,
				$4, $5, $6,
				$7, $8, $9, $10,
				$11, $12,
				$13, $14, $15,
				$16, $17, $18,
				$19
			)
		`,
			r.SweepID, r.ConfigID, config,
			sum.TradeCount, sum.WinCount, sum.WinRate,
			sum.LowestValue, sum.FinalValue, sum.ProfitRatePeak, sum.FinalProfitRate,
			sum.MaxProfitRateSingleTrade, sum.MaxLossRateSingleTrade,
			sum.MaxStreak, sum.MaxLossStreak, sum.MaxDrawdown,
			sum.TotalProfit, sum.TotalLoss, sum.ProfitFactor,
			sum.KillSwitchTriggered,
		)
		if err != nil {
			return storeErr("insert run result", err)
		}
		if len(r.Trades) == 0 {
			return nil
		}

		// seq keeps the close order of the run
		batch := &pgx.Batch{}
		for i, t := range r.Trades {
			batch.Queue(insertTradeQuery,
				r.SweepID, i,
				t.TradeID, r.ConfigID, t.Symbol, string(t.Side),
				t.EntryTick, t.EntryPrice, t.Position, t.CostBasis, t.ScaleIns,
				t.ExitTick, t.ExitPrice, t.ExitReason,
				t.RealizedPnL, t.ProfitRate, t.OutcomeClass, t.AccountProfitRate,
			)
		}
		if err := execBatch(ctx, tx, batch); err != nil {
			return storeErr("insert trade records", err)
		}
		return nil
	})
}

// GetByID retrieves one run with its trades. Returns ErrNotFound if not exists.
func (s *RunResultStore) GetByID(ctx context.Context, sweepID, configID string) (*domain.RunResult, error) {
	query := `SELECT ` + runResultColumns + ` FROM run_results WHERE sweep_id = $1 AND config_id = $2`

	r, err := scanRunResult(s.pool.QueryRow(ctx, query, sweepID, configID))
	if err != nil {
		return nil, storeErr("get run result by id", err)
	}

	trades, err := s.getTrades(ctx, sweepID, configID)
	if err != nil {
		return nil, err
	}
	r.Trades = trades
	return r, nil
}

// GetBySweep retrieves all runs of a sweep with their trades, ordered by config_id ASC.
func (s *RunResultStore) GetBySweep(ctx context.Context, sweepID string) ([]*domain.RunResult, error) {
	query := `SELECT ` + runResultColumns + ` FROM run_results WHERE sweep_id = $1 ORDER BY config_id ASC`

	rows, err := s.pool.Query(ctx, query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("get run results by sweep: %w", err)
	}

	var results []*domain.RunResult
	for rows.Next() {
		r, err := scanRunResult(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run result row: %w", err)
		}
		results = append(results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run result rows: %w", err)
	}

	for _, r := range results {
		trades, err := s.getTrades(ctx, sweepID, r.ConfigID)
		if err != nil {
			return nil, err
		}
		r.Trades = trades
	}

	return results, nil
}

func (s *RunResultStore) getTrades(ctx context.Context, sweepID, configID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE sweep_id = $1 AND config_id = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, sweepID, configID)
	if err != nil {
		return nil, fmt.Errorf("get trade records: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		err := rows.Scan(
			&t.TradeID, &t.ConfigID, &t.Symbol, &side,
			&t.EntryTick, &t.EntryPrice, &t.Position, &t.CostBasis, &t.ScaleIns,
			&t.ExitTick, &t.ExitPrice, &t.ExitReason,
			&t.RealizedPnL, &t.ProfitRate, &t.OutcomeClass, &t.AccountProfitRate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}
	return trades, nil
}

// scanRunResult scans a single run_results row.
func scanRunResult(row pgx.Row) (*domain.RunResult, error) {
	var r domain.RunResult
	var config []byte
	sum := &r.Summary

	err := row.Scan(
		&r.SweepID, &r.ConfigID, &config,
		&sum.TradeCount, &sum.WinCount, &sum.WinRate,
		&sum.LowestValue, &sum.FinalValue, &sum.ProfitRatePeak, &sum.FinalProfitRate,
		&sum.MaxProfitRateSingleTrade, &sum.MaxLossRateSingleTrade,
		&sum.MaxStreak, &sum.MaxLossStreak, &sum.MaxDrawdown,
		&sum.TotalProfit, &sum.TotalLoss, &sum.ProfitFactor,
		&sum.KillSwitchTriggered,
	)
	if err != nil {
		return nil, err
	}

	if err := sonic.Unmarshal(config, &r.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &r, nil
}
