// Package selection ranks the universe by lookback momentum and picks the
// symbol a simulator should hold.
package selection

import (
	"errors"
	"fmt"

	"momentum-lab/internal/domain"
)

// Selection errors. Both are expected outcomes, not faults.
var (
	ErrNoEligibleAsset     = errors.New("no eligible asset")
	ErrInsufficientHistory = fmt.Errorf("%w: insufficient history", ErrNoEligibleAsset)
)

// Query describes one selection request.
type Query struct {
	Side          domain.Side
	Rank          int     // 0 = best candidate
	LookbackTicks int     // momentum window
	Tick          int     // current tick
	MinMomentum   float64 // strict lower bound; math.Inf(-1) disables
}

type candidate struct {
	idx      int
	momentum float64
}

// Selector runs queries against a universe, reusing its scratch buffer
// between calls. A Selector is not safe for concurrent use; give each
// simulator its own. The universe itself may be shared.
type Selector struct {
	universe *domain.Universe
	pool     []candidate
}

// NewSelector creates a Selector over u.
func NewSelector(u *domain.Universe) *Selector {
	return &Selector{
		universe: u,
		pool:     make([]candidate, 0, u.NumSymbols()),
	}
}

// Select returns the symbol at q.Rank among symbols ordered by momentum.
//
// Momentum is price[t]/price[t-lookback]-1 for long and the reciprocal form
// for short. Points below domain.PriceFloor are excluded, then symbols with
// momentum <= q.MinMomentum. Candidates are extracted best-first; equal
// momenta resolve to the earlier symbol in universe order. Each extracted
// symbol that is not banned uses up one rank slot; banned ones are skipped
// without counting. Once the counter is 0 the extracted symbol is returned
// even if it is banned.
func (s *Selector) Select(q Query, banned map[string]int) (string, error) {
	if !q.Side.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSide, q.Side)
	}
	past := q.Tick - q.LookbackTicks
	if past < 0 {
		return "", ErrInsufficientHistory
	}
	if q.Tick >= s.universe.Len() {
		return "", ErrNoEligibleAsset
	}

	pool := s.pool[:0]
	for i := 0; i < s.universe.NumSymbols(); i++ {
		series := s.universe.SeriesAt(i)
		now, then := series[q.Tick], series[past]
		if now < domain.PriceFloor || then < domain.PriceFloor {
			continue
		}

		var m float64
		if q.Side == domain.SideLong {
			m = now/then - 1
		} else {
			m = then/now - 1
		}
		if m > q.MinMomentum {
			pool = append(pool, candidate{idx: i, momentum: m})
		}
	}
	s.pool = pool

	rank := q.Rank
	for len(pool) > 0 {
		best := 0
		for j := 1; j < len(pool); j++ {
			if pool[j].momentum > pool[best].momentum {
				best = j
			}
		}

		symbol := s.universe.Symbol(pool[best].idx)
		if rank == 0 {
			return symbol, nil
		}

		// keep order so later ties still resolve by universe order
		pool = append(pool[:best], pool[best+1:]...)
		if _, isBanned := banned[symbol]; !isBanned {
			rank--
		}
	}

	return "", ErrNoEligibleAsset
}

// Select is a one-shot convenience wrapper around Selector.Select.
func Select(u *domain.Universe, q Query, banned map[string]int) (string, error) {
	return NewSelector(u).Select(q, banned)
}
