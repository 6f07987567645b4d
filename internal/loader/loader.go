// Package loader reads price histories and lot-size tables from CSV.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"momentum-lab/internal/domain"
)

// Loader errors
var (
	ErrBadHeader    = errors.New("unexpected csv header")
	ErrTickOrder    = errors.New("ticks must be consecutive from 0")
	ErrBadValue     = errors.New("invalid csv value")
	ErrNoRows       = errors.New("csv has no data rows")
	ErrDuplicateLot = errors.New("duplicate lot size")
)

// LoadUniverse reads a wide price table: header "tick,SYM1,SYM2,...", one row
// per tick. Empty cells load as 0, i.e. not listed at that tick.
func LoadUniverse(r io.Reader) (*domain.Universe, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "tick") {
		return nil, fmt.Errorf("%w: want tick,<symbols...>, got %v", ErrBadHeader, header)
	}
	symbols := make([]string, len(header)-1)
	for i, h := range header[1:] {
		symbols[i] = strings.TrimSpace(h)
	}

	series := make([][]float64, len(symbols))
	for tick := 0; ; tick++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tick %d: %w", tick, err)
		}

		got, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: tick %q", ErrBadValue, rec[0])
		}
		if got != tick {
			return nil, fmt.Errorf("%w: row %d has tick %d", ErrTickOrder, tick, got)
		}

		for i, cell := range rec[1:] {
			price, err := parsePrice(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: %s at tick %d: %q", ErrBadValue, symbols[i], tick, cell)
			}
			series[i] = append(series[i], price)
		}
	}

	if len(series[0]) == 0 {
		return nil, ErrNoRows
	}
	return domain.NewUniverse(symbols, series)
}

// LoadLotSizes reads a "symbol,min_qty" table.
func LoadLotSizes(r io.Reader) (domain.LotSizes, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 2 || strings.TrimSpace(header[0]) != "symbol" || strings.TrimSpace(header[1]) != "min_qty" {
		return nil, fmt.Errorf("%w: want symbol,min_qty, got %v", ErrBadHeader, header)
	}

	lots := make(domain.LotSizes)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lot sizes: %w", err)
		}

		symbol := strings.TrimSpace(rec[0])
		if symbol == "" {
			return nil, fmt.Errorf("%w: empty symbol", ErrBadValue)
		}
		if _, exists := lots[symbol]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLot, symbol)
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil || !(qty > 0) {
			return nil, fmt.Errorf("%w: %s min_qty %q", ErrBadValue, symbol, rec[1])
		}
		lots[symbol] = qty
	}

	if len(lots) == 0 {
		return nil, ErrNoRows
	}
	return lots, nil
}

// LoadUniverseFile opens path and calls LoadUniverse.
func LoadUniverseFile(path string) (*domain.Universe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u, err := LoadUniverse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// LoadLotSizesFile opens path and calls LoadLotSizes.
func LoadLotSizesFile(path string) (domain.LotSizes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lots, err := LoadLotSizes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lots, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.ReuseRecord = true
	return cr
}

func parsePrice(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, nil
	}
	return strconv.ParseFloat(cell, 64)
}
