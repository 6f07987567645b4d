package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// runKey identifies one run within a sweep.
type runKey struct {
	sweepID  string
	configID string
}

// RunResultStore is an in-memory implementation of storage.RunResultStore.
type RunResultStore struct {
	mu   sync.RWMutex
	data map[runKey]*domain.RunResult
}

// NewRunResultStore creates a new in-memory run result store.
func NewRunResultStore() *RunResultStore {
	return &RunResultStore{
		data: make(map[runKey]*domain.RunResult),
	}
}

// Insert adds a run with its trades. Returns ErrDuplicateKey if the run exists.
func (s *RunResultStore) Insert(_ context.Context, r *domain.RunResult) error {
	if r == nil || r.SweepID == "" || r.ConfigID == "" {
		return storage.ErrInvalidInput
	}
	for _, t := range r.Trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := runKey{r.SweepID, r.ConfigID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyRunResult(r)
	return nil
}

// GetByID retrieves one run with its trades. Returns ErrNotFound if not exists.
func (s *RunResultStore) GetByID(_ context.Context, sweepID, configID string) (*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runKey{sweepID, configID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRunResult(r), nil
}

// GetBySweep retrieves all runs of a sweep, ordered by config_id ASC.
func (s *RunResultStore) GetBySweep(_ context.Context, sweepID string) ([]*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunResult
	for key, r := range s.data {
		if key.sweepID == sweepID {
			result = append(result, copyRunResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ConfigID < result[j].ConfigID
	})

	return result, nil
}

// copyRunResult returns a copy sharing no trade records with r.
// History is dropped: curves live in EquityCurveStore.
func copyRunResult(r *domain.RunResult) *domain.RunResult {
	c := *r
	c.History = nil
	c.Trades = make([]*domain.TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		tc := *t
		c.Trades[i] = &tc
	}
	return &c
}

var _ storage.RunResultStore = (*RunResultStore)(nil)
