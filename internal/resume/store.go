// Package resume tracks the resume variant mapped to each archetype and
// how well its language aligns with the archetype's current market.
package resume

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/embedding"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

// Centroids supplies the per-archetype centroid the alignment score is
// measured against. Both the classifier (phrase centroids) and the drift
// engine's market centroids satisfy it through CentroidFunc.
type Centroids interface {
	Centroid(a archetype.Archetype) []float64
}

// CentroidFunc adapts a plain function to the Centroids interface.
type CentroidFunc func(a archetype.Archetype) []float64

func (f CentroidFunc) Centroid(a archetype.Archetype) []float64 { return f(a) }

// Store resolves resume content per archetype, embeds it and persists the
// alignment keyed by a content hash, so alignment is only recomputed when
// the artifact actually changes.
type Store struct {
	paths    map[archetype.Archetype]string
	provider embedding.Provider
	persist  store.Store
	logger   *zap.Logger

	now func() time.Time
}

// New creates the variant store. paths maps each archetype to its resume
// artifact on disk.
func New(paths map[archetype.Archetype]string, provider embedding.Provider, persist store.Store, logger *zap.Logger) *Store {
	return &Store{
		paths:    paths,
		provider: provider,
		persist:  persist,
		logger:   logger,
		now:      time.Now,
	}
}

// Refresh recomputes alignment for every configured variant against the
// supplied centroids. Variants whose content hash is unchanged keep their
// stored embedding and only refresh the alignment score (the centroid may
// have moved even when the resume did not).
func (s *Store) Refresh(ctx context.Context, centroids Centroids) (map[archetype.Archetype]*model.ResumeVariant, error) {
	out := make(map[archetype.Archetype]*model.ResumeVariant, len(s.paths))

	for _, a := range archetype.All() {
		path, ok := s.paths[a]
		if !ok {
			continue
		}

		variant, err := s.refreshOne(ctx, a, path, centroids.Centroid(a))
		if err != nil {
			return nil, fmt.Errorf("refreshing %s variant: %w", a, err)
		}
		out[a] = variant
	}

	return out, nil
}

func (s *Store) refreshOne(ctx context.Context, a archetype.Archetype, path string, centroid []float64) (*model.ResumeVariant, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume artifact %q: %w", path, err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := s.persist.GetVariant(ctx, a)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("loading stored variant: %w", err)
	}

	variant := &model.ResumeVariant{
		Archetype:   a,
		ContentRef:  path,
		ContentHash: hash,
		RefreshedAt: s.now(),
	}

	if existing != nil {
		variant.LastRewritten = existing.LastRewritten
		if existing.ContentHash == hash && len(existing.Embedding) > 0 {
			variant.Embedding = existing.Embedding
		} else if existing.ContentHash != hash {
			// content changed since the last refresh: that is a rewrite
			rewritten := s.now()
			variant.LastRewritten = &rewritten
		}
	}

	if variant.Embedding == nil {
		v, err := s.provider.Embed(ctx, string(content))
		if err != nil {
			return nil, fmt.Errorf("embedding resume content: %w", err)
		}
		variant.Embedding = v
	}

	variant.AlignmentScore = clampUnit(embedding.Cosine(variant.Embedding, centroid))

	if err := s.persist.UpsertVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("persisting variant: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("resume variant refreshed",
			zap.String("archetype", string(a)),
			zap.Float64("alignment", variant.AlignmentScore),
			zap.String("content_hash", hash[:12]),
		)
	}

	return variant, nil
}

// Alignment returns the stored alignment for the archetype, or (fallback,
// false) when no variant is known.
func (s *Store) Alignment(ctx context.Context, a archetype.Archetype, fallback float64) (float64, bool) {
	variant, err := s.persist.GetVariant(ctx, a)
	if err != nil {
		return fallback, false
	}
	return variant.AlignmentScore, true
}

// WithClock overrides the clock. Tests use it to control LastRewritten.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func clampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
