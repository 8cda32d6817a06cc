package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeL2(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		vec := []float32{3, 4}
		NormalizeL2(vec)

		assert.InDelta(t, 0.6, vec[0], 1e-5)
		assert.InDelta(t, 0.8, vec[1], 1e-5)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		vec := []float32{0, 0, 0}
		NormalizeL2(vec)

		assert.Equal(t, []float32{0, 0, 0}, vec)
	})

	t.Run("normalization does not change cosine", func(t *testing.T) {
		a := []float32{2, 7, 1}
		b := []float32{5, 1, 3}

		before, err := Cosine(a, b)
		assert.NoError(t, err)

		NormalizeL2(a)
		NormalizeL2(b)

		after, err := Cosine(a, b)
		assert.NoError(t, err)
		assert.InDelta(t, before, after, 1e-5)

		var sum float64
		for _, v := range a {
			sum += float64(v) * float64(v)
		}

		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})
}
