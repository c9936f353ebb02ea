// Package embedding defines embedding vectors and the encoder boundary.
package embedding

import (
	"fmt"
	"math"
)

// NormEpsilon is the smallest L2 norm a vector may have before it is
// treated as zero.
const NormEpsilon = 1e-12

// Vector is a fixed-dimension embedding of 32-bit floats.
type Vector []float32

// Dimension returns the number of components.
func (v Vector) Dimension() int { return len(v) }

// Finite reports whether every component is a finite number.
func (v Vector) Finite() bool {
	return Finite(v)
}

// Norm returns the L2 norm, accumulated in float64.
func (v Vector) Norm() float64 {
	return Norm(v)
}

// Validate checks that the vector is usable as a query or catalog entry:
// non-empty, finite, and not zero-norm.
func (v Vector) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if !v.Finite() {
		return fmt.Errorf("%w: non-finite component", ErrInvalidEmbedding)
	}
	if n := v.Norm(); n <= NormEpsilon {
		return fmt.Errorf("%w: zero norm", ErrInvalidEmbedding)
	}
	return nil
}

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Normalize returns a unit-length copy of raw. Vectors that are empty,
// non-finite, or zero-norm fail with ErrInvalidEmbedding.
func Normalize(raw []float32) (Vector, error) {
	v := Vector(raw)
	if err := v.Validate(); err != nil {
		return nil, err
	}
	out := make(Vector, len(raw))
	Scale(out, raw, v.Norm())
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Finite reports whether every value in xs is finite.
func Finite(xs []float32) bool {
	for _, x := range xs {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of xs.
func Norm(xs []float32) float64 {
	var sum float64
	for _, x := range xs {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Scale writes src / norm into dst. dst and src may alias.
func Scale(dst, src []float32, norm float64) {
	for i, x := range src {
		dst[i] = float32(float64(x) / norm)
	}
}
