package clickhouse

import (
	"context"
	"fmt"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
type PriceSeriesStore struct {
	conn *Conn
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, tick).
// MergeTree does not enforce keys, so duplicates are checked before sending.
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type tickRange struct{ lo, hi int }
	batch := make(map[string]map[int]struct{})
	ranges := make(map[string]tickRange)
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Tick < 0 {
			return storage.ErrInvalidInput
		}
		ticks, ok := batch[p.Symbol]
		if !ok {
			ticks = make(map[int]struct{})
			batch[p.Symbol] = ticks
			ranges[p.Symbol] = tickRange{p.Tick, p.Tick}
		}
		if _, dup := ticks[p.Tick]; dup {
			return storage.ErrDuplicateKey
		}
		ticks[p.Tick] = struct{}{}
		r := ranges[p.Symbol]
		ranges[p.Symbol] = tickRange{min(r.lo, p.Tick), max(r.hi, p.Tick)}
	}

	for symbol, r := range ranges {
		existing, err := s.ticksInRange(ctx, symbol, r.lo, r.hi)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, tick := range existing {
			if _, dup := batch[symbol][tick]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	b, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_series (symbol, tick, price)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := b.Append(p.Symbol, uint32(p.Tick), p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := b.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by tick ASC.
func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, tick, price
		FROM price_series
		WHERE symbol = ?
		ORDER BY tick ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetAll retrieves every point, ordered by (symbol, tick) ASC.
func (s *PriceSeriesStore) GetAll(ctx context.Context) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, tick, price
		FROM price_series
		ORDER BY symbol ASC, tick ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// ticksInRange returns the stored ticks of symbol within [lo, hi].
func (s *PriceSeriesStore) ticksInRange(ctx context.Context, symbol string, lo, hi int) ([]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT tick FROM price_series
		WHERE symbol = ? AND tick >= ? AND tick <= ?
	`, symbol, uint32(lo), uint32(hi))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []int
	for rows.Next() {
		var tick uint32
		if err := rows.Scan(&tick); err != nil {
			return nil, err
		}
		ticks = append(ticks, int(tick))
	}
	return ticks, rows.Err()
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var tick uint32
		if err := rows.Scan(&p.Symbol, &tick, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price series row: %w", err)
		}
		p.Tick = int(tick)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price series rows: %w", err)
	}
	return points, nil
}
