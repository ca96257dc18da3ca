package reembed

import "math"

// NormalizeVector returns a unit-length copy of v, so refreshed embeddings
// match the cosine scoring the index expects. A zero or empty vector cannot
// be normalized and comes back as an equal-length zero vector.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, val := range v {
		out[i] = float32(float64(val) * inv)
	}
	return out
}
