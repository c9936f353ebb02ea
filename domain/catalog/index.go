// Package catalog defines the catalog index, its source rows, and card
// metadata.
package catalog

import (
	"fmt"

	"github.com/yksoni-monk/poke/domain/embedding"
)

// NoRow marks an entry whose source row index is unknown.
const NoRow = -1

// Entry pairs an identifier with its embedding.
type Entry struct {
	id     string
	row    int
	vector embedding.Vector
}

// NewEntry creates an Entry. row is the source row index, or NoRow.
func NewEntry(id string, row int, vector embedding.Vector) Entry {
	return Entry{id: id, row: row, vector: vector}
}

// ID returns the identifier.
func (e Entry) ID() string { return e.id }

// Row returns the source row index, or NoRow.
func (e Entry) Row() int { return e.row }

// Vector returns the embedding.
func (e Entry) Vector() embedding.Vector { return e.vector }

// Index is an immutable, ordered set of catalog entries. Vectors are
// stored row-major in one dense array; identifiers and rows are parallel
// to it.
type Index struct {
	dim  int
	ids  []string
	rows []int
	data []float32
}

// NewIndex creates an Index from parallel arrays. data holds len(ids)
// rows of dim floats. rows may be nil when source row indexes are unknown.
// Count disagreements fail with a CorruptionError.
func NewIndex(dim int, ids []string, rows []int, data []float32) (Index, error) {
	if dim < 0 {
		return Index{}, fmt.Errorf("%w: negative dimension %d", ErrIndexCorrupt, dim)
	}
	if dim == 0 {
		if len(ids) != 0 || len(data) != 0 {
			return Index{}, &CorruptionError{Vectors: 0, Metadata: len(ids)}
		}
		return Index{}, nil
	}
	if len(data)%dim != 0 {
		return Index{}, fmt.Errorf("%w: %d floats is not a multiple of dimension %d", ErrIndexCorrupt, len(data), dim)
	}
	if n := len(data) / dim; n != len(ids) {
		return Index{}, &CorruptionError{Vectors: n, Metadata: len(ids)}
	}
	if rows == nil {
		rows = make([]int, len(ids))
		for i := range rows {
			rows[i] = NoRow
		}
	}
	if len(rows) != len(ids) {
		return Index{}, fmt.Errorf("%w: %d row indexes for %d identifiers", ErrIndexCorrupt, len(rows), len(ids))
	}
	return Index{dim: dim, ids: ids, rows: rows, data: data}, nil
}

// NewIndexFromEntries stacks entries into an Index. All entries must
// share one dimension.
func NewIndexFromEntries(entries []Entry) (Index, error) {
	if len(entries) == 0 {
		return Index{}, nil
	}
	dim := len(entries[0].vector)
	ids := make([]string, len(entries))
	rows := make([]int, len(entries))
	data := make([]float32, 0, len(entries)*dim)
	for i, e := range entries {
		if len(e.vector) != dim {
			return Index{}, fmt.Errorf("%w: entry %q has dimension %d, expected %d", ErrIndexCorrupt, e.id, len(e.vector), dim)
		}
		ids[i] = e.id
		rows[i] = e.row
		data = append(data, e.vector...)
	}
	return NewIndex(dim, ids, rows, data)
}

// Len returns the number of entries.
func (x Index) Len() int { return len(x.ids) }

// Empty reports whether the index has no entries.
func (x Index) Empty() bool { return len(x.ids) == 0 }

// Dimension returns the vector dimension, or 0 for an empty index.
func (x Index) Dimension() int { return x.dim }

// ID returns the identifier at position i.
func (x Index) ID(i int) string { return x.ids[i] }

// Row returns the source row index at position i.
func (x Index) Row(i int) int { return x.rows[i] }

// Vector returns the vector at position i. The slice aliases the index
// storage and must not be modified.
func (x Index) Vector(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim]
}

// Data returns the dense row-major vector array. The slice aliases the
// index storage and must not be modified.
func (x Index) Data() []float32 { return x.data }

// IDs returns a copy of the identifiers in index order.
func (x Index) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}

// Entry returns the entry at position i.
func (x Index) Entry(i int) Entry {
	return NewEntry(x.ids[i], x.rows[i], embedding.Vector(x.Vector(i)))
}

// WithoutNonFinite returns an index without entries whose vectors contain
// NaN or Inf, plus the number of entries dropped. Identifiers, rows and
// vectors stay aligned.
func (x Index) WithoutNonFinite() (Index, int) {
	keep := make([]int, 0, len(x.ids))
	for i := range x.ids {
		if embedding.Finite(x.Vector(i)) {
			keep = append(keep, i)
		}
	}
	dropped := len(x.ids) - len(keep)
	if dropped == 0 {
		return x, 0
	}
	if len(keep) == 0 {
		return Index{dim: x.dim, ids: []string{}, rows: []int{}, data: []float32{}}, dropped
	}

	ids := make([]string, len(keep))
	rows := make([]int, len(keep))
	data := make([]float32, 0, len(keep)*x.dim)
	for j, i := range keep {
		ids[j] = x.ids[i]
		rows[j] = x.rows[i]
		data = append(data, x.Vector(i)...)
	}
	return Index{dim: x.dim, ids: ids, rows: rows, data: data}, dropped
}
