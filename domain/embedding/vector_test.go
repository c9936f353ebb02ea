package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_UnitLength(t *testing.T) {
	cases := [][]float32{
		{3, 4},
		{1, 1, 1, 1},
		{-0.5, 0.25, 1e-3, 7},
		{1e-6, 0, 0},
		{1e20, 1e20},
	}
	for _, raw := range cases {
		v, err := Normalize(raw)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v.Norm(), 1e-5)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := []float32{3, 4}
	_, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, raw)
}

func TestNormalize_RejectsInvalid(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	cases := map[string][]float32{
		"empty":  {},
		"zero":   {0, 0, 0},
		"nan":    {1, nan},
		"inf":    {inf, 0},
		"negInf": {float32(math.Inf(-1)), 1},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(raw)
			assert.ErrorIs(t, err, ErrInvalidEmbedding)
		})
	}
}

func TestVector_Validate(t *testing.T) {
	assert.NoError(t, Vector{0.6, 0.8}.Validate())
	assert.ErrorIs(t, Vector{0, 0}.Validate(), ErrInvalidEmbedding)
	assert.ErrorIs(t, Vector{float32(math.NaN()), 1}.Validate(), ErrInvalidEmbedding)
}

func TestVector_Clone(t *testing.T) {
	v := Vector{1, 2}
	c := v.Clone()
	c[0] = 9
	assert.Equal(t, float32(1), v[0])
}
