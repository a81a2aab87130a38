package resume

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/embedding"
	"github.com/jobtide/jobtide/internal/store"
)

type countingProvider struct {
	inner embedding.Provider
	calls int
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingProvider) Dimension() int { return c.inner.Dimension() }

func TestRefreshComputesAlignment(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "builder.md")
	content := "built a new data platform from scratch and shipped an mvp"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing resume: %v", err)
	}

	provider := embedding.NewFallback(64)
	mem := store.NewMemory()
	s := New(map[archetype.Archetype]string{archetype.Builder: path}, provider, mem, nil)

	centroid, _ := provider.Embed(ctx, content)

	variants, err := s.Refresh(ctx, CentroidFunc(func(archetype.Archetype) []float64 { return centroid }))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	v, ok := variants[archetype.Builder]
	if !ok {
		t.Fatalf("expected builder variant")
	}
	if v.AlignmentScore < 0.999 {
		t.Fatalf("resume identical to centroid must align at 1, got %v", v.AlignmentScore)
	}
	if v.LastRewritten != nil {
		t.Fatalf("first refresh must not set LastRewritten")
	}
	if v.ContentHash == "" || v.ContentRef != path {
		t.Fatalf("variant metadata incomplete: %+v", v)
	}

	score, known := s.Alignment(ctx, archetype.Builder, 0.42)
	if !known || score < 0.999 {
		t.Fatalf("expected stored alignment, got %v known=%v", score, known)
	}

	if _, known := s.Alignment(ctx, archetype.Operator, 0.42); known {
		t.Fatalf("operator variant must be unknown")
	}
}

func TestRefreshReusesEmbeddingWhenContentUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "fixer.md")
	if err := os.WriteFile(path, []byte("modernized legacy systems"), 0o600); err != nil {
		t.Fatalf("writing resume: %v", err)
	}

	provider := &countingProvider{inner: embedding.NewFallback(64)}
	mem := store.NewMemory()
	s := New(map[archetype.Archetype]string{archetype.Fixer: path}, provider, mem, nil)

	centroids := CentroidFunc(func(archetype.Archetype) []float64 { return nil })

	if _, err := s.Refresh(ctx, centroids); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	after := provider.calls
	if after == 0 {
		t.Fatalf("first refresh must embed the content")
	}

	if _, err := s.Refresh(ctx, centroids); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if provider.calls != after {
		t.Fatalf("unchanged content must not be re-embedded: %d calls, was %d", provider.calls, after)
	}
}

func TestRefreshMarksRewriteOnContentChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "operator.md")
	if err := os.WriteFile(path, []byte("kept production running"), 0o600); err != nil {
		t.Fatalf("writing resume: %v", err)
	}

	mem := store.NewMemory()
	s := New(map[archetype.Archetype]string{archetype.Operator: path}, embedding.NewFallback(64), mem, nil)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return t0 })

	centroids := CentroidFunc(func(archetype.Archetype) []float64 { return nil })

	if _, err := s.Refresh(ctx, centroids); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if err := os.WriteFile(path, []byte("kept production running, rewritten for incident response"), 0o600); err != nil {
		t.Fatalf("rewriting resume: %v", err)
	}

	t1 := t0.Add(48 * time.Hour)
	s.WithClock(func() time.Time { return t1 })

	variants, err := s.Refresh(ctx, centroids)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	v := variants[archetype.Operator]
	if v.LastRewritten == nil || !v.LastRewritten.Equal(t1) {
		t.Fatalf("expected LastRewritten %v, got %v", t1, v.LastRewritten)
	}

	// the rewrite timestamp survives refreshes without changes
	if _, err := s.Refresh(ctx, centroids); err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	stored, err := mem.GetVariant(ctx, archetype.Operator)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if stored.LastRewritten == nil || !stored.LastRewritten.Equal(t1) {
		t.Fatalf("LastRewritten must persist, got %v", stored.LastRewritten)
	}
}
