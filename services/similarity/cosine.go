// Package similarity scores vectors against each other.
package similarity

import (
	"math"

	"github.com/upb/billbuddy/services"
)

// Cosine returns dot(a,b) / (|a|·|b|).
//
// Vectors of different length fail with services.ErrDimensionMismatch. If either
// vector has zero norm the angle is undefined and the score is 0, so a blank
// embedding ranks as unrelated instead of poisoning the sort with NaN.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, services.DimensionMismatch(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// rounding can push parallel vectors just past ±1
	switch {
	case score > 1:
		score = 1
	case score < -1:
		score = -1
	}
	return score, nil
}
