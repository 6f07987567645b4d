package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"momentum-lab/internal/domain"
)

func TestUpdateTrailingStop_Long(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		prev  float64
		rate  float64
		want  float64
	}{
		{"first update from neutral", 100, 0, 0.1, 90},
		{"price rises, stop follows", 120, 90, 0.1, 108},
		{"price falls, stop holds", 95, 108, 0.1, 108},
		{"zero rate tracks price", 50, 40, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateTrailingStop(domain.SideLong, tt.price, tt.prev, tt.rate)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUpdateTrailingStop_Short(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		prev  float64
		rate  float64
		want  float64
	}{
		{"first update from neutral", 100, math.Inf(1), 0.1, 110},
		{"price falls, stop follows", 80, 110, 0.1, 88},
		{"price rises, stop holds", 105, 88, 0.1, 88},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateTrailingStop(domain.SideShort, tt.price, tt.prev, tt.rate)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUpdateTrailingStop_Ratchet(t *testing.T) {
	prices := []float64{100, 104, 99, 110, 87, 120, 119, 60, 130}

	long := InitialTrailingStop(domain.SideLong)
	short := InitialTrailingStop(domain.SideShort)
	for i, p := range prices {
		nextLong := UpdateTrailingStop(domain.SideLong, p, long, 0.05)
		nextShort := UpdateTrailingStop(domain.SideShort, p, short, 0.05)

		if nextLong < long {
			t.Errorf("tick %d: long stop loosened %v -> %v", i, long, nextLong)
		}
		if nextShort > short {
			t.Errorf("tick %d: short stop loosened %v -> %v", i, short, nextShort)
		}
		long, short = nextLong, nextShort
	}
}

func TestUpdateMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.2, UpdateMaxDrawdown(80, 100, 0), 1e-12)
	assert.InDelta(t, 0.3, UpdateMaxDrawdown(90, 100, 0.3), 1e-12)
	assert.InDelta(t, 0.1, UpdateMaxDrawdown(100, 100, 0.1), 1e-12)
}

func TestUpdateMaxDrawdown_NonDecreasing(t *testing.T) {
	values := []float64{10000, 10500, 9800, 11000, 8000, 12000, 11900, 7000}

	peak := values[0]
	mdd := 0.0
	for i, v := range values {
		peak = math.Max(peak, v)
		next := UpdateMaxDrawdown(v, peak, mdd)
		if next < mdd {
			t.Fatalf("value %d: max drawdown decreased %v -> %v", i, mdd, next)
		}
		mdd = next
	}
	assert.InDelta(t, (12000.0-7000.0)/12000.0, mdd, 1e-12)
}
