// Package gating turns classifier scores plus resume alignment into the
// apply / market-intelligence-only / needs-review decision for the queue.
package gating

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/resume"
	"github.com/jobtide/jobtide/internal/store"
)

const (
	defaultReviewMargin     = 0.10
	defaultMinCombinedFit   = 0.15
	defaultAlignmentUnknown = 0.5
	defaultWorkers          = 4
)

// Config carries the gating thresholds. Defaults are hand-tuned; treat
// them as knobs.
type Config struct {
	// ReviewMargin is the top-vs-second score gap below which variant
	// selection is a close call needing human confirmation.
	ReviewMargin float64
	// MinCombinedFit is the floor below which a posting is kept for market
	// visibility only and excluded from automated application.
	MinCombinedFit float64
	// AlignmentUnknown is the alignment assumed when no resume variant is
	// stored for the archetype.
	AlignmentUnknown float64
	// Workers bounds the classification worker pool.
	Workers int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ReviewMargin:     defaultReviewMargin,
		MinCombinedFit:   defaultMinCombinedFit,
		AlignmentUnknown: defaultAlignmentUnknown,
		Workers:          defaultWorkers,
	}
}

// Validate rejects configurations that would gate everything or nothing.
func (c Config) Validate() error {
	if c.ReviewMargin < 0 || c.ReviewMargin >= 1 {
		return fmt.Errorf("review margin must be within [0, 1), got %v", c.ReviewMargin)
	}
	if c.MinCombinedFit < 0 || c.MinCombinedFit >= 1 {
		return fmt.Errorf("minimum combined fit must be within [0, 1), got %v", c.MinCombinedFit)
	}
	if c.AlignmentUnknown <= 0 || c.AlignmentUnknown > 1 {
		return fmt.Errorf("unknown-variant alignment must be within (0, 1], got %v", c.AlignmentUnknown)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Report summarizes one queue recompute pass.
type Report struct {
	Evaluated          int
	Updated            int
	MarketIntelligence int
	ManualReview       int

	// ReviewPostings are the postings flagged for human confirmation in
	// this pass, so callers can offer an interactive decision.
	ReviewPostings []*model.JobPosting
}

// Service recomputes the apply queue.
type Service struct {
	cfg        Config
	store      store.Store
	classifier *archetype.Classifier
	resumes    *resume.Store
	logger     *zap.Logger
}

// New validates the config and builds the service.
func New(cfg Config, st store.Store, classifier *archetype.Classifier, resumes *resume.Store, log *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gating config: %w", err)
	}
	return &Service{cfg: cfg, store: st, classifier: classifier, resumes: resumes, logger: logger.WithComponent(log, "gating")}, nil
}

// SelectVariant picks the highest-scoring archetype and flags the decision
// for review when the margin over the runner-up is below the threshold.
func (s *Service) SelectVariant(scores map[archetype.Archetype]float64) (archetype.Archetype, bool) {
	return selectVariant(scores, s.cfg.ReviewMargin)
}

func selectVariant(scores map[archetype.Archetype]float64, margin float64) (archetype.Archetype, bool) {
	type scored struct {
		a archetype.Archetype
		s float64
	}

	ranked := make([]scored, 0, len(scores))
	for _, a := range archetype.All() {
		ranked = append(ranked, scored{a: a, s: scores[a]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].s > ranked[j].s })

	if len(ranked) < 2 {
		return ranked[0].a, false
	}
	return ranked[0].a, ranked[0].s-ranked[1].s < margin
}

// RecomputeQueue classifies postings that have no scores yet, selects the
// matching variant, computes combined fit and writes the queue fields.
// Classification is stateless per posting, so it runs across a small worker
// pool; writes stay on the calling goroutine's context.
func (s *Service) RecomputeQueue(ctx context.Context) (*Report, error) {
	postings, err := s.store.PendingPostings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending postings: %w", err)
	}

	report := &Report{Evaluated: len(postings)}

	s.classifyMissing(ctx, postings)

	for _, p := range postings {
		if !p.Classified() {
			// classification degraded to nothing usable; leave the posting alone
			continue
		}

		primary, needsReview := selectVariant(p.ArchetypeScores, s.cfg.ReviewMargin)

		alignment, known := s.resumes.Alignment(ctx, primary, s.cfg.AlignmentUnknown)
		combined := p.ArchetypeScores[primary] * alignment

		fields := store.QueueFields{
			ArchetypePrimary:       primary,
			CombinedFit:            combined,
			MarketIntelligenceOnly: combined < s.cfg.MinCombinedFit,
			SelectionNeedsReview:   needsReview,
		}

		if err := s.store.UpdateQueueFields(ctx, p.ID, fields); err != nil {
			return nil, fmt.Errorf("updating queue fields for %s: %w", p.ID, err)
		}

		report.Updated++
		if fields.MarketIntelligenceOnly {
			report.MarketIntelligence++
		}
		if fields.SelectionNeedsReview {
			report.ManualReview++
			report.ReviewPostings = append(report.ReviewPostings, p)
		}

		if s.logger != nil {
			s.logger.Debug("posting gated",
				zap.String("posting_id", p.ID.String()),
				zap.String("archetype", string(primary)),
				zap.Float64("primary_score", p.ArchetypeScores[primary]),
				zap.Float64("alignment", alignment),
				zap.Bool("alignment_known", known),
				zap.Float64("combined_fit", combined),
				zap.Bool("market_intelligence_only", fields.MarketIntelligenceOnly),
				zap.Bool("needs_review", needsReview),
			)
		}
	}

	return report, nil
}

// Confirm applies a human variant decision to a posting flagged for
// review. Combined fit is recomputed for the chosen archetype and the
// review flag cleared.
func (s *Service) Confirm(ctx context.Context, p *model.JobPosting, choice archetype.Archetype) error {
	if !choice.Valid() {
		return fmt.Errorf("unknown archetype %q", choice)
	}

	alignment, _ := s.resumes.Alignment(ctx, choice, s.cfg.AlignmentUnknown)
	combined := p.ArchetypeScores[choice] * alignment

	fields := store.QueueFields{
		ArchetypePrimary:       choice,
		CombinedFit:            combined,
		MarketIntelligenceOnly: combined < s.cfg.MinCombinedFit,
		SelectionNeedsReview:   false,
	}
	if err := s.store.UpdateQueueFields(ctx, p.ID, fields); err != nil {
		return fmt.Errorf("confirming variant for %s: %w", p.ID, err)
	}
	return nil
}

// classifyMissing fills in scores for postings the classifier has not seen
// yet and persists the classification once.
func (s *Service) classifyMissing(ctx context.Context, postings []*model.JobPosting) {
	pending := make(chan *model.JobPosting)

	var (
		mu         sync.Mutex
		classified []*model.JobPosting
		wg         sync.WaitGroup
	)

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pending {
				result := s.classifier.Classify(ctx, p.Description, p.Title)
				p.ArchetypeScores = result.Scores
				p.ArchetypePrimary = result.Primary
				p.Embedding = result.Embedding
				p.JobType = result.JobType
				p.Seniority = result.Seniority
				p.TechTags = result.TechTags
				p.ClassifiedAt = time.Now()

				mu.Lock()
				classified = append(classified, p)
				mu.Unlock()
			}
		}()
	}

	for _, p := range postings {
		if p.Classified() {
			continue
		}
		pending <- p
	}
	close(pending)
	wg.Wait()

	for _, p := range classified {
		if err := s.store.UpsertPosting(ctx, p); err != nil && s.logger != nil {
			s.logger.Warn("persisting classification failed",
				zap.String("posting_id", p.ID.String()),
				zap.Error(err),
			)
		}
	}

	if len(classified) > 0 && s.logger != nil {
		s.logger.Info("classified postings", zap.Int("count", len(classified)))
	}
}
