package outcome

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

// RawMessage is one message as the ingestion source yields it.
type RawMessage struct {
	ID         string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Source yields raw messages in bounded batches per poll. The returned
// cursor is opaque; passing it back resumes after the batch.
type Source interface {
	Poll(ctx context.Context, cursor string, limit int) ([]RawMessage, string, error)
}

// SyncConfig carries the sync loop settings.
type SyncConfig struct {
	// Account keys the sync cursor so multiple inboxes stay independent.
	Account string
	// BatchLimit bounds each poll.
	BatchLimit int
	// ApplicationWindowDays bounds the snapshot of applications messages
	// are matched against.
	ApplicationWindowDays int
	// GhostAfterDays moves signal-less applications to ghost.
	GhostAfterDays int
	// Workers bounds the per-batch matching pool.
	Workers int
}

// DefaultSyncConfig returns the tuned defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Account:               "default",
		BatchLimit:            50,
		ApplicationWindowDays: 90,
		GhostAfterDays:        45,
		Workers:               4,
	}
}

// Validate rejects unusable sync settings.
func (c SyncConfig) Validate() error {
	if strings.TrimSpace(c.Account) == "" {
		return fmt.Errorf("sync account is required")
	}
	if c.BatchLimit <= 0 || c.Workers <= 0 {
		return fmt.Errorf("batch limit and workers must be positive")
	}
	if c.ApplicationWindowDays <= 0 || c.GhostAfterDays <= 0 {
		return fmt.Errorf("application window and ghost thresholds must be positive")
	}
	return nil
}

// SyncReport summarizes one sync pass.
type SyncReport struct {
	Fetched      int
	Duplicates   int
	Dropped      int
	AutoMatched  int
	ManualReview int
	Unmatched    int
	Ghosted      int
}

// Syncer drains the message source, deduplicates, classifies, matches and
// records outcomes. One sequential stream per account; matching within a
// batch runs in parallel against a read-only application snapshot.
type Syncer struct {
	cfg     SyncConfig
	source  Source
	store   store.Store
	cursors store.CursorStore
	matcher *Matcher
	logger  *zap.Logger

	now func() time.Time
}

// NewSyncer validates the config and builds the syncer.
func NewSyncer(cfg SyncConfig, source Source, st store.Store, cursors store.CursorStore, matcher *Matcher, log *zap.Logger) (*Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sync config: %w", err)
	}
	return &Syncer{
		cfg:     cfg,
		source:  source,
		store:   st,
		cursors: cursors,
		matcher: matcher,
		logger:  logger.WithComponent(log, "sync"),
		now:     time.Now,
	}, nil
}

// WithClock overrides the clock for tests.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Run drains the source batch by batch. The cursor only advances once a
// batch is fully processed, so a crash mid-batch reprocesses it instead of
// skipping messages; the per-message dedup keys make that safe.
func (s *Syncer) Run(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	cursor, err := s.cursors.LastCursor(ctx, s.cfg.Account)
	if err != nil {
		return nil, fmt.Errorf("loading sync cursor: %w", err)
	}

	for {
		batch, next, err := s.source.Poll(ctx, cursor, s.cfg.BatchLimit)
		if err != nil {
			return report, fmt.Errorf("polling message source: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		report.Fetched += len(batch)

		if err := s.processBatch(ctx, batch, report); err != nil {
			return report, err
		}

		if err := s.cursors.SetCursor(ctx, s.cfg.Account, next); err != nil {
			return report, fmt.Errorf("advancing sync cursor: %w", err)
		}
		cursor = next
	}

	ghosted, err := s.sweepGhosts(ctx)
	if err != nil {
		return report, err
	}
	report.Ghosted = ghosted

	return report, nil
}

type matchedMessage struct {
	msg   *model.InboundMessage
	match Match
	stage model.OutcomeStage
}

func (s *Syncer) processBatch(ctx context.Context, batch []RawMessage, report *SyncReport) error {
	since := s.now().AddDate(0, 0, -s.cfg.ApplicationWindowDays)
	snapshot, err := s.store.RecentApplications(ctx, since)
	if err != nil {
		return fmt.Errorf("loading application snapshot: %w", err)
	}

	messages := make([]*model.InboundMessage, 0, len(batch))
	for _, raw := range batch {
		seen, err := s.cursors.SeenMessage(ctx, raw.ID)
		if err != nil {
			return fmt.Errorf("dedup check for %s: %w", raw.ID, err)
		}
		if seen {
			report.Duplicates++
			continue
		}

		msg, ok := s.parseMessage(raw)
		if !ok {
			// unparseable messages are dropped, not retried
			report.Dropped++
			if err := s.cursors.MarkMessage(ctx, raw.ID); err != nil {
				return fmt.Errorf("marking dropped message %s: %w", raw.ID, err)
			}
			continue
		}
		messages = append(messages, msg)
	}

	results := s.matchAll(ctx, messages, snapshot)

	for _, r := range results {
		if err := s.record(ctx, r, report); err != nil {
			return err
		}
		if err := s.cursors.MarkMessage(ctx, r.msg.MessageID); err != nil {
			return fmt.Errorf("marking message %s: %w", r.msg.MessageID, err)
		}
	}

	return nil
}

// matchAll scores messages against the snapshot across a worker pool.
// Scoring is read-only; all writes happen afterwards on the caller.
func (s *Syncer) matchAll(ctx context.Context, messages []*model.InboundMessage, snapshot []*model.Application) []matchedMessage {
	results := make([]matchedMessage, len(messages))

	var wg sync.WaitGroup
	work := make(chan int)
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				msg := messages[idx]
				stage, confidence := ClassifyStage(msg.Body)
				msg.Classification = string(stage)
				results[idx] = matchedMessage{
					msg:   msg,
					match: s.matcher.Match(ctx, msg, snapshot),
					stage: stage,
				}
				if s.logger != nil {
					s.logger.Debug("message classified",
						zap.String("message_id", msg.MessageID),
						zap.String("stage", string(stage)),
						zap.Float64("confidence", confidence),
						zap.String("body_preview", logger.TruncateForLog(msg.Body, 120)),
					)
				}
			}
		}()
	}
	for i := range messages {
		work <- i
	}
	close(work)
	wg.Wait()

	return results
}

func (s *Syncer) record(ctx context.Context, r matchedMessage, report *SyncReport) error {
	switch r.match.Status {
	case StatusAutoMatched:
		report.AutoMatched++
		app := r.match.Application
		r.msg.MatchedApplicationID = &app.ID

		if r.stage != model.StageOther {
			if err := s.store.TransitionOutcome(ctx, app.ID, r.stage, r.match.Method, r.msg.ReceivedAt); err != nil {
				return fmt.Errorf("recording outcome for %s: %w", app.ID, err)
			}
		}
		if s.logger != nil {
			s.logger.Info("message matched",
				zap.String("message_id", r.msg.MessageID),
				zap.String("application_id", app.ID.String()),
				zap.String("method", r.match.Method),
				zap.String("stage", string(r.stage)),
			)
		}

	case StatusManualReview:
		report.ManualReview++
		r.msg.RequiresManualReview = true
		if s.logger != nil {
			s.logger.Info("message needs manual review",
				zap.String("message_id", r.msg.MessageID),
				zap.Int("candidates", len(r.match.Candidates)),
			)
		}

	case StatusUnmatched:
		report.Unmatched++
		if s.logger != nil {
			s.logger.Debug("message unmatched", zap.String("message_id", r.msg.MessageID))
		}
	}

	return nil
}

// parseMessage rejects messages with no resolvable sender.
func (s *Syncer) parseMessage(raw RawMessage) (*model.InboundMessage, bool) {
	sender := strings.ToLower(strings.TrimSpace(raw.Sender))
	at := strings.LastIndex(sender, "@")
	if raw.ID == "" || at <= 0 || at == len(sender)-1 {
		if s.logger != nil {
			s.logger.Warn("dropping unparseable message",
				zap.String("message_id", raw.ID),
				zap.String("sender", raw.Sender),
			)
		}
		return nil, false
	}

	return &model.InboundMessage{
		MessageID:    raw.ID,
		Sender:       sender,
		SenderDomain: sender[at+1:],
		Subject:      raw.Subject,
		Body:         raw.Body,
		ReceivedAt:   raw.ReceivedAt,
	}, true
}

// sweepGhosts moves applications with no signal past the waiting period to
// the ghost stage.
func (s *Syncer) sweepGhosts(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.AddDate(0, 0, -s.cfg.GhostAfterDays)

	apps, err := s.store.RecentApplications(ctx, now.AddDate(0, 0, -s.cfg.ApplicationWindowDays*4))
	if err != nil {
		return 0, fmt.Errorf("loading applications for ghost sweep: %w", err)
	}

	ghosted := 0
	for _, app := range apps {
		if app.OutcomeStage != model.StageApplied && app.OutcomeStage != model.StageAcknowledged {
			continue
		}
		last := app.LastSignalAt
		if last.IsZero() {
			last = app.AppliedAt
		}
		if last.After(cutoff) {
			continue
		}
		if err := s.store.TransitionOutcome(ctx, app.ID, model.StageGhost, "timeout", now); err != nil {
			return ghosted, fmt.Errorf("ghosting application %s: %w", app.ID, err)
		}
		ghosted++
		if s.logger != nil {
			s.logger.Info("application ghosted",
				zap.String("application_id", app.ID.String()),
				zap.Time("last_signal", last),
			)
		}
	}

	return ghosted, nil
}
