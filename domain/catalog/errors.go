package catalog

import (
	"errors"
	"fmt"
)

// Catalog errors.
var (
	ErrIndexNotFound  = errors.New("catalog index not found")
	ErrIndexCorrupt   = errors.New("catalog index corrupt")
	ErrInvalidRecord  = errors.New("invalid metadata record")
	ErrInvalidSource  = errors.New("invalid source row")
	ErrInvalidCard    = errors.New("invalid card")
	ErrCardNotFound   = errors.New("card not found")
	ErrNoValidEntries = errors.New("no valid catalog entries")
)

// CorruptionError reports disagreeing vector and metadata counts.
type CorruptionError struct {
	Vectors  int
	Metadata int
}

// Error implements error.
func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %d vectors, %d metadata records", ErrIndexCorrupt, e.Vectors, e.Metadata)
}

// Is matches ErrIndexCorrupt.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrIndexCorrupt
}
