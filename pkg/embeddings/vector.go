package embeddings

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned by Cosine when the two vectors have different lengths.
// This is a caller contract violation (vectors from different models or a corrupted row),
// not a soft failure.
var ErrDimensionMismatch = errors.New("embeddings: vector dimension mismatch")

// Cosine returns dot(a,b) / (|a|*|b|) in [-1, 1]. It returns 0 when either vector has zero
// norm so the result is never NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// guard against float drift just outside [-1, 1]
	return math.Max(-1, math.Min(1, cos)), nil
}

// ToScore maps a cosine similarity to a 0..100 score. Negative cosines clamp to 0 (production
// embeddings are treated as non-negative after normalization) and values above 1 clamp to 100.
// Rounding is left to the caller.
func ToScore(cosine float64) float64 {
	if math.IsNaN(cosine) {
		return 0
	}

	return math.Max(0, math.Min(1, cosine)) * 100
}
