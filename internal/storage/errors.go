package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested run, curve or series is not stored.
	ErrNotFound = errors.New("not found")

	// ErrNoPrices means a universe was requested from an empty price store.
	ErrNoPrices = fmt.Errorf("%w: no price points stored", ErrNotFound)

	// ErrDuplicateKey means a run, trade or point with the same key is already
	// stored. Results are written once per (sweep, config).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput means a record is missing its key fields or carries a
	// non-positive lot size.
	ErrInvalidInput = errors.New("invalid input")
)
