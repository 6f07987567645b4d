package memory

import (
	"context"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// LotSizeStore is an in-memory implementation of storage.LotSizeStore.
type LotSizeStore struct {
	mu   sync.RWMutex
	data domain.LotSizes
}

// NewLotSizeStore creates a new in-memory lot size store.
func NewLotSizeStore() *LotSizeStore {
	return &LotSizeStore{
		data: make(domain.LotSizes),
	}
}

// Upsert inserts or replaces the lot size of every symbol in lots.
func (s *LotSizeStore) Upsert(_ context.Context, lots domain.LotSizes) error {
	for symbol, lot := range lots {
		if symbol == "" || !(lot > 0) {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for symbol, lot := range lots {
		s.data[symbol] = lot
	}
	return nil
}

// GetAll retrieves a copy of the lot table.
func (s *LotSizeStore) GetAll(_ context.Context) (domain.LotSizes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(domain.LotSizes, len(s.data))
	for symbol, lot := range s.data {
		result[symbol] = lot
	}
	return result, nil
}

var _ storage.LotSizeStore = (*LotSizeStore)(nil)
