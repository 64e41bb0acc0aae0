package similarity

import "math"

// Cosine returns the cosine similarity of two vectors, accumulated in
// float64 so summation order noise stays below the stored precision.
// Returns 0 when either norm is zero or the lengths differ; both are
// defined outcomes, not errors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
