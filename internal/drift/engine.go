// Package drift tracks how each archetype's market centroid moves over
// time and when the conjunction of a market shift and a stale resume, gated
// by a rewrite cooldown, warrants a resume rewrite.
//
// Drift is never inferred from a single signal: a moving market with a
// well-aligned resume needs no action, and a stale resume in a stable
// market is not urgent. Only both together trigger a recommendation.
package drift

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/embedding"
	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

const (
	defaultWindowDays         = 30
	defaultMinSamples         = 5
	defaultShiftThreshold     = 0.05
	defaultStalenessThreshold = 0.08
	defaultTermDeltaThreshold = 0.02
	defaultRewriteCooldown    = 21
	defaultTopTerms           = 10
	defaultVocabularySize     = 200
)

// Config carries the drift thresholds. All defaults are hand-tuned.
type Config struct {
	// WindowDays is the rolling window postings are aggregated over.
	WindowDays int
	// MinSamples is the minimum posting count before a centroid is
	// written; windows below it are skipped, never recorded.
	MinSamples int
	// ShiftThreshold is the centroid movement (1 - cosine) past which a
	// market_shift alert opens.
	ShiftThreshold float64
	// StalenessThreshold is the resume-to-centroid distance past which a
	// resume_stale alert opens.
	StalenessThreshold float64
	// TermDeltaThreshold is the similarity delta past which a vocabulary
	// term counts as gained or lost.
	TermDeltaThreshold float64
	// RewriteCooldownDays is the minimum gap between rewrites.
	RewriteCooldownDays int
	// TopTerms bounds the gained/lost term lists attached to alerts.
	TopTerms int
	// VocabularySize bounds the reference vocabulary built from recent
	// posting text.
	VocabularySize int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:          defaultWindowDays,
		MinSamples:          defaultMinSamples,
		ShiftThreshold:      defaultShiftThreshold,
		StalenessThreshold:  defaultStalenessThreshold,
		TermDeltaThreshold:  defaultTermDeltaThreshold,
		RewriteCooldownDays: defaultRewriteCooldown,
		TopTerms:            defaultTopTerms,
		VocabularySize:      defaultVocabularySize,
	}
}

// Validate rejects configurations that could write low-confidence centroids
// or thrash rewrites.
func (c Config) Validate() error {
	if c.WindowDays <= 0 {
		return fmt.Errorf("window days must be positive, got %d", c.WindowDays)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("minimum samples must be at least 1, got %d", c.MinSamples)
	}
	if c.ShiftThreshold <= 0 || c.StalenessThreshold <= 0 {
		return fmt.Errorf("shift and staleness thresholds must be positive")
	}
	if c.TermDeltaThreshold <= 0 {
		return fmt.Errorf("term delta threshold must be positive, got %v", c.TermDeltaThreshold)
	}
	if c.RewriteCooldownDays < 0 {
		return fmt.Errorf("rewrite cooldown must be non-negative, got %d", c.RewriteCooldownDays)
	}
	if c.TopTerms <= 0 || c.VocabularySize <= 0 {
		return fmt.Errorf("top terms and vocabulary size must be positive")
	}
	return nil
}

// ArchetypeReport summarizes one cycle for one archetype.
type ArchetypeReport struct {
	Archetype       archetype.Archetype
	CentroidWritten bool
	SkipReason      string
	Shift           float64
	Staleness       float64
	AlertsOpened    []string
	RewriteOpened   bool
}

// CycleReport summarizes a full drift cycle.
type CycleReport struct {
	RanAt      time.Time
	Archetypes []ArchetypeReport
}

// Engine runs the periodic drift cycle. It is a single-writer batch job;
// cycles for different archetypes are independent.
type Engine struct {
	cfg      Config
	store    store.Store
	provider embedding.Provider
	logger   *zap.Logger

	now func() time.Time
}

// New validates the config and builds the engine.
func New(cfg Config, st store.Store, provider embedding.Provider, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("drift config: %w", err)
	}
	return &Engine{cfg: cfg, store: st, provider: provider, logger: logger.WithComponent(log, "drift"), now: time.Now}, nil
}

// WithClock overrides the clock for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunCycle executes one full drift pass over every archetype: centroid
// computation, market-shift check, staleness check, rewrite trigger.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	now := e.now()
	report := &CycleReport{RanAt: now}

	for _, a := range archetype.All() {
		ar, err := e.runArchetype(ctx, a, now)
		if err != nil {
			return nil, fmt.Errorf("drift cycle for %s: %w", a, err)
		}
		report.Archetypes = append(report.Archetypes, *ar)
	}

	return report, nil
}

func (e *Engine) runArchetype(ctx context.Context, a archetype.Archetype, now time.Time) (*ArchetypeReport, error) {
	report := &ArchetypeReport{Archetype: a}

	windowStart := now.AddDate(0, 0, -e.cfg.WindowDays)
	postings, err := e.store.PostingsSince(ctx, a, windowStart)
	if err != nil {
		return nil, fmt.Errorf("loading postings: %w", err)
	}

	centroid, texts := e.computeCentroid(ctx, a, postings, windowStart, now, report)
	if centroid == nil {
		// No new centroid this cycle; staleness still runs against the
		// latest stored one so existing alerts keep their meaning.
		latest, err := e.store.LatestCentroid(ctx, a)
		if errors.Is(err, store.ErrNotFound) {
			return report, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading latest centroid: %w", err)
		}
		if err := e.checkStaleness(ctx, a, latest.Centroid, report); err != nil {
			return nil, err
		}
		return report, e.checkRewrite(ctx, a, now, report)
	}

	if err := e.checkMarketShift(ctx, a, centroid, texts, report); err != nil {
		return nil, err
	}
	if err := e.checkStaleness(ctx, a, centroid.Centroid, report); err != nil {
		return nil, err
	}
	return report, e.checkRewrite(ctx, a, now, report)
}

// computeCentroid writes a new MarketCentroid row when the window holds
// enough samples. Thin windows are skipped entirely rather than recorded
// with spurious confidence.
func (e *Engine) computeCentroid(ctx context.Context, a archetype.Archetype, postings []*model.JobPosting, windowStart, now time.Time, report *ArchetypeReport) (*model.MarketCentroid, []string) {
	vectors := make([][]float64, 0, len(postings))
	texts := make([]string, 0, len(postings))
	for _, p := range postings {
		if len(p.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, p.Embedding)
		texts = append(texts, p.Title+" "+p.Description)
	}

	if len(vectors) < e.cfg.MinSamples {
		report.SkipReason = fmt.Sprintf("only %d postings in window, need %d", len(vectors), e.cfg.MinSamples)
		if e.logger != nil {
			e.logger.Info("skipping centroid window",
				zap.String("archetype", string(a)),
				zap.Int("samples", len(vectors)),
				zap.Int("minimum", e.cfg.MinSamples),
			)
		}
		return nil, nil
	}

	mean := embedding.Mean(vectors)

	shift := 0.0
	if prior, err := e.store.LatestCentroid(ctx, a); err == nil {
		shift = 1 - embedding.Cosine(mean, prior.Centroid)
	}

	row := &model.MarketCentroid{
		Archetype:         a,
		WindowStart:       windowStart,
		WindowEnd:         now,
		Centroid:          mean,
		JDCount:           len(vectors),
		ShiftFromPrevious: shift,
	}

	if err := e.store.AppendCentroid(ctx, row); err != nil {
		report.SkipReason = "centroid write failed"
		if e.logger != nil {
			e.logger.Warn("appending centroid failed", zap.String("archetype", string(a)), zap.Error(err))
		}
		return nil, nil
	}

	report.CentroidWritten = true
	report.Shift = shift
	if e.logger != nil {
		e.logger.Info("centroid written",
			zap.String("archetype", string(a)),
			zap.Int("jd_count", len(vectors)),
			zap.Float64("shift_from_previous", shift),
		)
	}

	return row, texts
}

// checkMarketShift opens a market_shift alert when the centroid moved past
// the threshold, with the terms gaining and losing relevance attached.
func (e *Engine) checkMarketShift(ctx context.Context, a archetype.Archetype, current *model.MarketCentroid, texts []string, report *ArchetypeReport) error {
	previous, err := e.store.PreviousCentroid(ctx, a)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading previous centroid: %w", err)
	}

	if current.ShiftFromPrevious <= e.cfg.ShiftThreshold {
		return nil
	}

	open, err := e.store.UnacknowledgedAlerts(ctx, a, model.AlertMarketShift)
	if err != nil {
		return fmt.Errorf("listing open shift alerts: %w", err)
	}
	if len(open) > 0 {
		return nil
	}

	vocabulary := buildVocabulary(texts, e.cfg.VocabularySize)
	gained, lost := termDeltas(ctx, e.provider, vocabulary, previous.Centroid, current.Centroid, e.cfg.TermDeltaThreshold, e.cfg.TopTerms)

	details := ShiftDetails{
		Shift:       current.ShiftFromPrevious,
		GainedTerms: gained,
		LostTerms:   lost,
		WindowDays:  e.cfg.WindowDays,
		SampleCount: current.JDCount,
	}

	alert := &model.DriftAlert{
		Archetype:      a,
		Type:           model.AlertMarketShift,
		MetricValue:    current.ShiftFromPrevious,
		ThresholdValue: e.cfg.ShiftThreshold,
		Details:        details.toMap(),
		CreatedAt:      e.now(),
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("creating market shift alert: %w", err)
	}

	report.AlertsOpened = append(report.AlertsOpened, model.AlertMarketShift)
	if e.logger != nil {
		e.logger.Warn("market shift detected",
			zap.String("archetype", string(a)),
			zap.Float64("shift", current.ShiftFromPrevious),
			zap.Strings("gained_terms", gained),
			zap.Strings("lost_terms", lost),
		)
	}
	return nil
}

// checkStaleness opens a resume_stale alert when the resume drifted too far
// from the archetype's latest centroid.
func (e *Engine) checkStaleness(ctx context.Context, a archetype.Archetype, centroid []float64, report *ArchetypeReport) error {
	variant, err := e.store.GetVariant(ctx, a)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading resume variant: %w", err)
	}

	staleness := 1 - embedding.Cosine(variant.Embedding, centroid)
	report.Staleness = staleness
	if staleness <= e.cfg.StalenessThreshold {
		return nil
	}

	open, err := e.store.UnacknowledgedAlerts(ctx, a, model.AlertResumeStale)
	if err != nil {
		return fmt.Errorf("listing open staleness alerts: %w", err)
	}
	if len(open) > 0 {
		return nil
	}

	details := StaleDetails{Staleness: staleness, ContentHash: variant.ContentHash}
	alert := &model.DriftAlert{
		Archetype:      a,
		Type:           model.AlertResumeStale,
		MetricValue:    staleness,
		ThresholdValue: e.cfg.StalenessThreshold,
		Details:        details.toMap(),
		CreatedAt:      e.now(),
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("creating staleness alert: %w", err)
	}

	report.AlertsOpened = append(report.AlertsOpened, model.AlertResumeStale)
	if e.logger != nil {
		e.logger.Warn("resume staleness detected",
			zap.String("archetype", string(a)),
			zap.Float64("staleness", staleness),
		)
	}
	return nil
}

// checkRewrite synthesizes a rewrite recommendation when both an
// unacknowledged market_shift and an unacknowledged resume_stale alert
// exist for the archetype and the cooldown has elapsed. Opening it
// acknowledges the two contributing alerts, which are now superseded.
func (e *Engine) checkRewrite(ctx context.Context, a archetype.Archetype, now time.Time, report *ArchetypeReport) error {
	shiftAlerts, err := e.store.UnacknowledgedAlerts(ctx, a, model.AlertMarketShift)
	if err != nil {
		return fmt.Errorf("listing shift alerts: %w", err)
	}
	staleAlerts, err := e.store.UnacknowledgedAlerts(ctx, a, model.AlertResumeStale)
	if err != nil {
		return fmt.Errorf("listing staleness alerts: %w", err)
	}
	if len(shiftAlerts) == 0 || len(staleAlerts) == 0 {
		return nil
	}

	variant, err := e.store.GetVariant(ctx, a)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading resume variant: %w", err)
	}

	if variant.LastRewritten != nil {
		cooldown := time.Duration(e.cfg.RewriteCooldownDays) * 24 * time.Hour
		if now.Sub(*variant.LastRewritten) < cooldown {
			if e.logger != nil {
				e.logger.Info("rewrite suppressed by cooldown",
					zap.String("archetype", string(a)),
					zap.Time("last_rewritten", *variant.LastRewritten),
				)
			}
			return nil
		}
	}

	shiftDetails, err := DecodeShiftDetails(shiftAlerts[0].Details)
	if err != nil {
		return err
	}

	details := RewriteDetails{
		GainedTerms:    shiftDetails.GainedTerms,
		LostTerms:      shiftDetails.LostTerms,
		ResumeHash:     variant.ContentHash,
		SuggestedFocus: suggestedFocus(a, shiftDetails.GainedTerms),
	}

	alert := &model.DriftAlert{
		Archetype:      a,
		Type:           model.AlertRewriteTriggered,
		MetricValue:    shiftAlerts[0].MetricValue,
		ThresholdValue: e.cfg.ShiftThreshold,
		Details:        details.toMap(),
		CreatedAt:      now,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("creating rewrite alert: %w", err)
	}

	for _, contributing := range []*model.DriftAlert{shiftAlerts[0], staleAlerts[0]} {
		if err := e.store.AcknowledgeAlert(ctx, contributing.ID); err != nil {
			return fmt.Errorf("acknowledging contributing alert %s: %w", contributing.ID, err)
		}
	}

	report.AlertsOpened = append(report.AlertsOpened, model.AlertRewriteTriggered)
	report.RewriteOpened = true
	if e.logger != nil {
		e.logger.Warn("resume rewrite recommended",
			zap.String("archetype", string(a)),
			zap.Strings("gained_terms", details.GainedTerms),
			zap.Strings("lost_terms", details.LostTerms),
		)
	}
	return nil
}

func suggestedFocus(a archetype.Archetype, gained []string) string {
	if len(gained) == 0 {
		return fmt.Sprintf("refresh the %s variant against recent postings", a)
	}
	return fmt.Sprintf("emphasise %s in the %s variant", strings.Join(gained, ", "), a)
}
