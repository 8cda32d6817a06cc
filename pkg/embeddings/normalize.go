// Package embeddings provides vector math for embedding comparison: L2 normalization,
// cosine similarity and the mapping from cosine to a 0..100 similarity score.
package embeddings

import (
	"math"
)

// NormalizeL2 scales vector to unit length in place. Providers that return unnormalized
// vectors are normalized before storage so stored and query vectors compare consistently.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	// all-zero vectors are left untouched
	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}
