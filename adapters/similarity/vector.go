package similarity

import (
	"math"

	"steward/domain/core"

	"gonum.org/v1/gonum/floats"
)

// Cosine computes the cosine similarity between two equal-length vectors,
// in [-1, 1]. Mismatched lengths are a caller error. A zero vector yields
// NaN; callers that cannot tolerate NaN should use SafeCosine.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, core.NewDimensionMismatchError(len(a), len(b))
	}
	dot := floats.Dot(a, b)
	normA := math.Sqrt(floats.Dot(a, a))
	normB := math.Sqrt(floats.Dot(b, b))
	return dot / (normA * normB), nil
}

// SafeCosine is Cosine with the degenerate cases collapsed to zero: a NaN
// result (all-zero vector) or a dimension mismatch both report similarity 0,
// so callers ranking candidates can simply skip them.
func SafeCosine(a, b []float64) float64 {
	sim, err := Cosine(a, b)
	if err != nil || math.IsNaN(sim) {
		return 0
	}
	return sim
}
