package similarity

import (
	"math"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b. A zero-magnitude operand
// yields 0. The shorter vector is treated as zero-padded.
func Cosine(a, b []float64) float64 {
	var dot, magA, magB float64
	for i, v := range a {
		magA += v * v
		if i < len(b) {
			dot += v * b[i]
		}
	}
	for _, v := range b {
		magB += v * v
	}
	if magA == 0 || magB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return math.Max(-1, math.Min(1, sim))
}

// AverageProfile returns the elementwise mean of vectors.
func AverageProfile(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyProfile
	}

	width := 0
	for _, v := range vectors {
		width = max(width, len(v))
	}

	avg := make([]float64, width)
	for _, v := range vectors {
		for i, x := range v {
			avg[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}
