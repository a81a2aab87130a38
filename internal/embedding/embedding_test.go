package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{1, 0, 0}
	c := []float64{0, 1, 0}

	if got := Cosine(a, b); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: got %v, want 1", got)
	}
	if got := Cosine(a, c); got != 0 {
		t.Fatalf("orthogonal vectors: got %v, want 0", got)
	}
	if got := Cosine(a, []float64{1, 0}); got != 0 {
		t.Fatalf("mismatched lengths: got %v, want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("empty vectors: got %v, want 0", got)
	}
	if got := Cosine([]float64{0, 0}, []float64{0, 0}); got != 0 {
		t.Fatalf("zero magnitude: got %v, want 0", got)
	}
}

func TestMeanSkipsMismatchedLengths(t *testing.T) {
	got := Mean([][]float64{
		{2, 4},
		{1, 2, 3},
		{4, 8},
		nil,
	})

	want := []float64{3, 6}
	if len(got) != len(want) {
		t.Fatalf("mean length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mean[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Mean(nil) != nil {
		t.Fatalf("expected nil mean for no vectors")
	}
}

func TestFallbackDeterministic(t *testing.T) {
	f := NewFallback(64)

	first, err := f.Embed(context.Background(), "legacy migration and technical debt")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, _ := f.Embed(context.Background(), "legacy migration and technical debt")

	if len(first) != 64 {
		t.Fatalf("dimension %d, want 64", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vector differs at %d: %v vs %v", i, first[i], second[i])
		}
	}

	var norm float64
	for _, x := range first {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("vector not unit length: %v", norm)
	}
}

func TestFallbackEmptyTextIsZeroVector(t *testing.T) {
	f := NewFallback(0)

	if f.Dimension() != DefaultDimension {
		t.Fatalf("dimension %d, want default %d", f.Dimension(), DefaultDimension)
	}

	v, err := f.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v at %d", x, i)
		}
	}
}

type failingProvider struct{}

func (failingProvider) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("quota exceeded")
}

func (failingProvider) Dimension() int { return 64 }

func TestFailoverUsesFallbackOnError(t *testing.T) {
	f := NewFailover(failingProvider{}, NewFallback(64), nil)

	v, err := f.Embed(context.Background(), "kubernetes on-call rotation")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("dimension %d, want 64", len(v))
	}

	direct, _ := NewFallback(64).Embed(context.Background(), "kubernetes on-call rotation")
	for i := range v {
		if v[i] != direct[i] {
			t.Fatalf("failover vector differs from fallback at %d", i)
		}
	}
}
