package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// equityKey is the composite key of an equity point.
type equityKey struct {
	sweepID  string
	configID string
	tick     int
}

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[equityKey]*domain.EquityPoint
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[equityKey]*domain.EquityPoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *EquityCurveStore) InsertBulk(_ context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[equityKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.SweepID == "" || p.ConfigID == "" {
			return storage.ErrInvalidInput
		}
		key := equityKey{p.SweepID, p.ConfigID, p.Tick}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[equityKey{p.SweepID, p.ConfigID, p.Tick}] = &pointCopy
	}

	return nil
}

// GetByRun retrieves the curve of one run, ordered by tick ASC.
func (s *EquityCurveStore) GetByRun(_ context.Context, sweepID, configID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for key, p := range s.data {
		if key.sweepID == sweepID && key.configID == configID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Tick < result[j].Tick
	})

	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
