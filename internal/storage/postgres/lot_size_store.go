package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// LotSizeStore implements storage.LotSizeStore using PostgreSQL.
type LotSizeStore struct {
	pool *Pool
}

// NewLotSizeStore creates a new LotSizeStore.
func NewLotSizeStore(pool *Pool) *LotSizeStore {
	return &LotSizeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LotSizeStore = (*LotSizeStore)(nil)

// Upsert inserts or replaces the lot size of every symbol in one transaction.
func (s *LotSizeStore) Upsert(ctx context.Context, lots domain.LotSizes) error {
	if len(lots) == 0 {
		return nil
	}
	for symbol, lot := range lots {
		if symbol == "" || !(lot > 0) {
			return storage.ErrInvalidInput
		}
	}

	batch := &pgx.Batch{}
	for symbol, lot := range lots {
		batch.Queue(`
			INSERT INTO lot_sizes (symbol, min_qty)
			VALUES ($1, $2)
			ON CONFLICT (symbol) DO UPDATE SET min_qty = EXCLUDED.min_qty, updated_at = now()
		`, symbol, lot)
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		if err := execBatch(ctx, tx, batch); err != nil {
			return storeErr("upsert lot sizes", err)
		}
		return nil
	})
}

// GetAll retrieves the full lot table.
func (s *LotSizeStore) GetAll(ctx context.Context) (domain.LotSizes, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, min_qty FROM lot_sizes`)
	if err != nil {
		return nil, fmt.Errorf("get lot sizes: %w", err)
	}
	defer rows.Close()

	lots := make(domain.LotSizes)
	for rows.Next() {
		var symbol string
		var lot float64
		if err := rows.Scan(&symbol, &lot); err != nil {
			return nil, fmt.Errorf("scan lot size row: %w", err)
		}
		lots[symbol] = lot
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lot size rows: %w", err)
	}

	return lots, nil
}
