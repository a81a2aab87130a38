package gating

import (
	"context"
	"testing"
	"time"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/embedding"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/resume"
	"github.com/jobtide/jobtide/internal/store"
)

func TestSelectVariantCloseCall(t *testing.T) {
	scores := map[archetype.Archetype]float64{
		archetype.Builder:    0.50,
		archetype.Fixer:      0.45,
		archetype.Operator:   0.03,
		archetype.Translator: 0.02,
	}

	primary, needsReview := selectVariant(scores, 0.10)
	if primary != archetype.Builder {
		t.Fatalf("expected builder, got %s", primary)
	}
	if !needsReview {
		t.Fatalf("expected review flag for a 0.05 margin")
	}
}

func TestSelectVariantClearWinner(t *testing.T) {
	scores := map[archetype.Archetype]float64{
		archetype.Builder:    0.80,
		archetype.Fixer:      0.10,
		archetype.Operator:   0.05,
		archetype.Translator: 0.05,
	}

	primary, needsReview := selectVariant(scores, 0.10)
	if primary != archetype.Builder {
		t.Fatalf("expected builder, got %s", primary)
	}
	if needsReview {
		t.Fatalf("did not expect review flag for a 0.70 margin")
	}
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()

	ctx := context.Background()

	clsCfg := archetype.DefaultClassifierConfig()
	clsCfg.UseEmbeddings = false
	classifier, err := archetype.NewClassifier(ctx, clsCfg, nil, nil)
	if err != nil {
		t.Fatalf("building classifier: %v", err)
	}

	resumes := resume.New(nil, embedding.NewFallback(32), st, nil)

	service, err := New(DefaultConfig(), st, classifier, resumes, nil)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return service
}

func TestRecomputeQueue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	service := newTestService(t, mem)

	strong := &model.JobPosting{
		Title:       "Software Engineer",
		Company:     "Acme",
		Description: "Modernize the legacy monolith. Pay down technical debt.",
		PostedAt:    time.Now(),
	}
	weak := &model.JobPosting{
		Title:       "Engineer",
		Company:     "Globex",
		Description: "A role doing various things.",
		PostedAt:    time.Now(),
	}
	if err := mem.UpsertPosting(ctx, strong); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mem.UpsertPosting(ctx, weak); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	report, err := service.RecomputeQueue(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if report.Evaluated != 2 || report.Updated != 2 {
		t.Fatalf("expected 2 evaluated and updated, got %+v", report)
	}
	if report.ManualReview != 1 {
		t.Fatalf("expected 1 manual review, got %d", report.ManualReview)
	}
	if report.MarketIntelligence != 1 {
		t.Fatalf("expected 1 market-intelligence posting, got %d", report.MarketIntelligence)
	}

	got, err := mem.GetPosting(ctx, strong.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ArchetypePrimary != archetype.Fixer {
		t.Fatalf("expected fixer primary, got %s", got.ArchetypePrimary)
	}
	if got.SelectionNeedsReview {
		t.Fatalf("did not expect review flag for a dominant score")
	}
	// no stored variant: alignment defaults to 0.5
	if got.CombinedFit < defaultMinCombinedFit {
		t.Fatalf("expected combined fit above the floor, got %v", got.CombinedFit)
	}
	if got.MarketIntelligenceOnly {
		t.Fatalf("strong posting must stay in the apply queue")
	}

	gotWeak, err := mem.GetPosting(ctx, weak.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// uniform scores: 0.25 x 0.5 alignment lands below the 0.15 floor
	if !gotWeak.MarketIntelligenceOnly {
		t.Fatalf("weak posting must be market intelligence only, combined %v", gotWeak.CombinedFit)
	}
	if !gotWeak.SelectionNeedsReview {
		t.Fatalf("uniform scores must flag review")
	}

	if len(report.ReviewPostings) != 1 || report.ReviewPostings[0].ID != weak.ID {
		t.Fatalf("expected the weak posting in ReviewPostings")
	}
}

func TestRecomputeQueueUsesStoredAlignment(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	service := newTestService(t, mem)

	if err := mem.UpsertVariant(ctx, &model.ResumeVariant{
		Archetype:      archetype.Fixer,
		AlignmentScore: 0.9,
	}); err != nil {
		t.Fatalf("upsert variant: %v", err)
	}

	p := &model.JobPosting{
		Title:       "Software Engineer",
		Description: "Modernize the legacy monolith. Pay down technical debt.",
		PostedAt:    time.Now(),
	}
	if err := mem.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := service.RecomputeQueue(ctx); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	got, err := mem.GetPosting(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// fixer score is 1.0 after normalization, so combined fit is the
	// stored alignment
	if got.CombinedFit < 0.89 || got.CombinedFit > 0.91 {
		t.Fatalf("expected combined fit near 0.9, got %v", got.CombinedFit)
	}
}

func TestConfirmClearsReviewFlag(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	service := newTestService(t, mem)

	p := &model.JobPosting{
		Title:       "Engineer",
		Description: "A role doing various things.",
		PostedAt:    time.Now(),
	}
	if err := mem.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	report, err := service.RecomputeQueue(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(report.ReviewPostings) != 1 {
		t.Fatalf("expected one review posting")
	}

	flagged := report.ReviewPostings[0]
	if err := service.Confirm(ctx, flagged, archetype.Operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := mem.GetPosting(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ArchetypePrimary != archetype.Operator {
		t.Fatalf("expected operator after confirmation, got %s", got.ArchetypePrimary)
	}
	if got.SelectionNeedsReview {
		t.Fatalf("review flag must be cleared after confirmation")
	}

	if err := service.Confirm(ctx, flagged, archetype.Archetype("pirate")); err == nil {
		t.Fatalf("expected error for unknown archetype")
	}
}
