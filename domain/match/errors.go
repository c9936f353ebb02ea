package match

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates a query and catalog of different
// dimensions, usually an encoder/catalog version mismatch.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionMismatchError carries both dimensions.
type DimensionMismatchError struct {
	Query   int
	Catalog int
}

// Error implements error.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: query has %d dimensions, catalog has %d", ErrDimensionMismatch, e.Query, e.Catalog)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
