package sweep

import (
	"context"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Sink receives each finished run. Implementations must be safe for
// concurrent use.
type Sink interface {
	Save(ctx context.Context, r *domain.RunResult) error
}

// StoreSink persists runs to a result store and, optionally, their
// trade-history curves to an equity curve store.
type StoreSink struct {
	Results storage.RunResultStore
	Curves  storage.EquityCurveStore // optional
}

// Save inserts the run, then its curve.
func (s StoreSink) Save(ctx context.Context, r *domain.RunResult) error {
	if err := s.Results.Insert(ctx, r); err != nil {
		return err
	}
	if s.Curves == nil {
		return nil
	}
	return s.Curves.InsertBulk(ctx, storage.EquityPoints(r))
}

// MultiSink fans each run out to several sinks, stopping at the first error.
type MultiSink []Sink

// Save calls every sink in order.
func (m MultiSink) Save(ctx context.Context, r *domain.RunResult) error {
	for _, s := range m {
		if err := s.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Collector is an in-memory Sink that keeps every run it receives.
type Collector struct {
	mu   sync.Mutex
	runs []*domain.RunResult
}

// Save appends r.
func (c *Collector) Save(_ context.Context, r *domain.RunResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, r)
	return nil
}

// Runs returns the collected runs in arrival order.
func (c *Collector) Runs() []*domain.RunResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.RunResult(nil), c.runs...)
}

var (
	_ Sink = StoreSink{}
	_ Sink = MultiSink{}
	_ Sink = (*Collector)(nil)
)
