package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// DefaultDimension is the vector size of the hashed fallback provider.
const DefaultDimension = 256

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Fallback is a deterministic hashed bag-of-tokens provider. Each lowercase
// token is hashed into a fixed-size vector by modulo index and the counts
// are L2-normalized. It needs no network and always produces the same
// vector for the same normalized content, at reduced semantic quality
// compared to a real embedding model.
type Fallback struct {
	dim int
}

// NewFallback creates the hashed bag-of-tokens provider. A non-positive
// dimension falls back to DefaultDimension.
func NewFallback(dim int) *Fallback {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Fallback{dim: dim}
}

func (f *Fallback) Dimension() int { return f.dim }

// Embed never fails; empty text yields the zero vector.
func (f *Fallback) Embed(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, f.dim)

	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		h.Write([]byte(token))
		v[int(h.Sum32())%f.dim]++
	}

	return Normalize(v), nil
}
