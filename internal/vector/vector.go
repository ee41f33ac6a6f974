// Package vector provides small vector-arithmetic helpers shared by the
// ingestion and retrieval paths.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyInput indicates a centroid was requested for zero vectors.
	ErrEmptyInput = errors.New("centroid of empty input")

	// ErrDimensionMismatch indicates mixed vector dimensionalities.
	// Similarity across different embedding models is undefined and must
	// be rejected, never silently computed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Centroid returns the per-dimension arithmetic mean of the given vectors.
// All vectors must share one dimensionality. The result is independent of
// input order.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sums[j] += float64(x)
		}
	}

	centroid := make([]float32, dim)
	n := float64(len(vectors))
	for j, sum := range sums {
		centroid[j] = float32(sum / n)
	}
	return centroid, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// in [-1, 1]. Returns 0 for mismatched dimensions or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
