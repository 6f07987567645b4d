package storage

import (
	"context"

	"momentum-lab/internal/domain"
)

// PriceSeriesStore provides access to price_series storage.
type PriceSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, tick).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves all points for a symbol, ordered by tick ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)

	// GetAll retrieves every point, ordered by (symbol, tick) ASC.
	GetAll(ctx context.Context) ([]*domain.PricePoint, error)
}

// LotSizeStore provides access to lot_sizes storage.
// Unlike the result stores it is not append-only: exchanges change lot sizes.
type LotSizeStore interface {
	// Upsert inserts or replaces the lot size of every symbol in lots.
	Upsert(ctx context.Context, lots domain.LotSizes) error

	// GetAll retrieves the full lot table. Returns an empty table if none stored.
	GetAll(ctx context.Context) (domain.LotSizes, error)
}

// RunResultStore provides access to run_results and trade_records storage.
type RunResultStore interface {
	// Insert adds a run with its trades atomically.
	// Returns ErrDuplicateKey if (sweep_id, config_id) exists.
	Insert(ctx context.Context, r *domain.RunResult) error

	// GetByID retrieves one run with its trades. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, sweepID, configID string) (*domain.RunResult, error)

	// GetBySweep retrieves all runs of a sweep with their trades, ordered by config_id ASC.
	// History is never populated by RunResultStore; use EquityCurveStore.
	GetBySweep(ctx context.Context, sweepID string) ([]*domain.RunResult, error)
}

// EquityCurveStore provides access to equity_curves storage.
type EquityCurveStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (sweep_id, config_id, tick).
	InsertBulk(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRun retrieves the curve of one run, ordered by tick ASC.
	GetByRun(ctx context.Context, sweepID, configID string) ([]*domain.EquityPoint, error)
}

// LoadUniverse reads every stored price point and assembles the Universe.
// An empty store returns ErrNoPrices.
func LoadUniverse(ctx context.Context, store PriceSeriesStore) (*domain.Universe, error) {
	points, err := store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return domain.NewUniverseFromPoints(points)
}

// EquityPoints converts a run's history into storable points.
func EquityPoints(r *domain.RunResult) []*domain.EquityPoint {
	points := make([]*domain.EquityPoint, len(r.History))
	for i, h := range r.History {
		points[i] = &domain.EquityPoint{
			SweepID:    r.SweepID,
			ConfigID:   r.ConfigID,
			Tick:       h.Tick,
			ProfitRate: h.ProfitRate,
		}
	}
	return points
}
