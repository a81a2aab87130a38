// Package embedding defines the provider interface the classifier and the
// drift engine depend on, plus the vector math shared by both.
package embedding

import (
	"context"
	"math"
)

// Provider turns text into a fixed-length vector. Implementations must be
// deterministic for identical input.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// is zero-length or zero-magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Mean returns the element-wise mean of the provided vectors, skipping
// vectors whose length does not match the first. Returns nil when no usable
// vector is present.
func Mean(vectors [][]float64) []float64 {
	var mean []float64
	count := 0

	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if mean == nil {
			mean = make([]float64, len(v))
		}
		if len(v) != len(mean) {
			continue
		}
		for i := range v {
			mean[i] += v[i]
		}
		count++
	}

	if count == 0 {
		return nil
	}
	for i := range mean {
		mean[i] /= float64(count)
	}
	return mean
}

// Normalize scales v to unit L2 norm in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
