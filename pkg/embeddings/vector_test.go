package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	t.Run("identical non-zero vectors", func(t *testing.T) {
		a := []float32{0.3, 1.2, -4}

		got, err := Cosine(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		got, err := Cosine([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, got, 1e-9)
	})

	t.Run("opposite vectors before clamping", func(t *testing.T) {
		got, err := Cosine([]float32{1, 2, 3}, []float32{-1, -2, -3})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, got, 1e-9)
	})

	t.Run("length mismatch fails", func(t *testing.T) {
		got, err := Cosine([]float32{1, 2, 3}, []float32{1, 2})
		require.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Contains(t, err.Error(), "3 != 2")
		assert.Zero(t, got)
	})

	t.Run("zero norm returns zero not NaN", func(t *testing.T) {
		got, err := Cosine([]float32{0, 0}, []float32{1, 1})
		require.NoError(t, err)
		assert.False(t, math.IsNaN(got))
		assert.Zero(t, got)
	})

	t.Run("empty vectors", func(t *testing.T) {
		got, err := Cosine(nil, []float32{})
		require.NoError(t, err)
		assert.Zero(t, got)
	})
}

func TestToScore(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"one", 1, 100},
		{"zero", 0, 0},
		{"half", 0.5, 50},
		{"negative clamps to zero", -0.5, 0},
		{"above one clamps to 100", 1.5, 100},
		{"not rounded", 0.876, 87.6},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ToScore(tt.in), 1e-9)
		})
	}
}
