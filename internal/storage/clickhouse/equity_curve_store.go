package clickhouse

import (
	"context"
	"fmt"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (sweep_id, config_id, tick).
func (s *EquityCurveStore) InsertBulk(ctx context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	type runKey struct{ sweepID, configID string }
	type key struct {
		run  runKey
		tick int
	}
	seen := make(map[key]struct{}, len(points))
	runs := make(map[runKey]struct{})
	for _, p := range points {
		if p == nil || p.SweepID == "" || p.ConfigID == "" {
			return storage.ErrInvalidInput
		}
		k := key{runKey{p.SweepID, p.ConfigID}, p.Tick}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[k.run] = struct{}{}
	}

	for run := range runs {
		existing, err := s.GetByRun(ctx, run.sweepID, run.configID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, e := range existing {
			if _, dup := seen[key{run, e.Tick}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	b, err := s.conn.PrepareBatch(ctx, `INSERT INTO equity_curves (sweep_id, config_id, tick, profit_rate)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := b.Append(p.SweepID, p.ConfigID, uint32(p.Tick), p.ProfitRate); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := b.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves the curve of one run, ordered by tick ASC.
func (s *EquityCurveStore) GetByRun(ctx context.Context, sweepID, configID string) ([]*domain.EquityPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT sweep_id, config_id, tick, profit_rate
		FROM equity_curves
		WHERE sweep_id = ? AND config_id = ?
		ORDER BY tick ASC
	`, sweepID, configID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	var points []*domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var tick uint32
		if err := rows.Scan(&p.SweepID, &p.ConfigID, &tick, &p.ProfitRate); err != nil {
			return nil, fmt.Errorf("scan equity curve row: %w", err)
		}
		p.Tick = int(tick)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve rows: %w", err)
	}
	return points, nil
}
