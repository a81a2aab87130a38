package outcome

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

func writeMessageExport(t *testing.T, messages []RawMessage) string {
	t.Helper()

	data, err := json.Marshal(messages)
	if err != nil {
		t.Fatalf("marshaling messages: %v", err)
	}
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing export: %v", err)
	}
	return path
}

func TestFileSourcePaging(t *testing.T) {
	ctx := context.Background()
	path := writeMessageExport(t, []RawMessage{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	})

	source, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("opening source: %v", err)
	}

	batch, cursor, err := source.Poll(ctx, "", 2)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != "a" || batch[1].ID != "b" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}
	if cursor != "2" {
		t.Fatalf("expected cursor 2, got %q", cursor)
	}

	batch, cursor, err = source.Poll(ctx, cursor, 2)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "c" {
		t.Fatalf("unexpected second batch: %+v", batch)
	}

	batch, _, err = source.Poll(ctx, cursor, 2)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected drained source, got %d messages", len(batch))
	}

	if _, _, err := source.Poll(ctx, "nonsense", 2); err == nil {
		t.Fatalf("expected error for an invalid cursor")
	}
}

func newTestSyncer(t *testing.T, mem *store.Memory, source Source, now time.Time) *Syncer {
	t.Helper()

	matcher, err := NewMatcher(DefaultMatchConfig(), mem, nil)
	if err != nil {
		t.Fatalf("building matcher: %v", err)
	}

	cfg := DefaultSyncConfig()
	cfg.BatchLimit = 2

	syncer, err := NewSyncer(cfg, source, mem, mem, matcher, nil)
	if err != nil {
		t.Fatalf("building syncer: %v", err)
	}
	return syncer.WithClock(func() time.Time { return now })
}

func TestSyncRun(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mem.AddKnownSender(&model.KnownSender{Address: "noreply@seek.com", JobBoard: true})

	applied := &model.Application{
		ExternalID:   "12345",
		Company:      "Acme",
		Title:        "Senior Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -10),
	}
	stale := &model.Application{
		Company:      "Globex",
		Title:        "Platform Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -80),
	}
	for _, app := range []*model.Application{applied, stale} {
		if err := mem.CreateApplication(ctx, app); err != nil {
			t.Fatalf("seeding application: %v", err)
		}
	}

	messages := []RawMessage{
		{
			ID:         "m1",
			Sender:     "noreply@seek.com",
			Body:       "Your application for job 12345 was not successful this time.",
			ReceivedAt: now.Add(-time.Hour),
		},
		{
			ID:         "m2",
			Sender:     "no-at-sign",
			Body:       "broken",
			ReceivedAt: now.Add(-time.Hour),
		},
		{
			ID:         "m1", // duplicate lands in the next batch
			Sender:     "noreply@seek.com",
			Body:       "Your application for job 12345 was not successful this time.",
			ReceivedAt: now.Add(-time.Hour),
		},
		{
			ID:         "m4",
			Sender:     "offers@randomgym.com",
			Body:       "Discounted yoga class memberships this week.",
			ReceivedAt: now.Add(-time.Hour),
		},
	}

	source, err := NewFileSource(writeMessageExport(t, messages))
	if err != nil {
		t.Fatalf("opening source: %v", err)
	}
	syncer := newTestSyncer(t, mem, source, now)

	report, err := syncer.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Fetched != 4 {
		t.Fatalf("expected 4 fetched, got %d", report.Fetched)
	}
	if report.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", report.Duplicates)
	}
	if report.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", report.Dropped)
	}
	if report.AutoMatched != 1 {
		t.Fatalf("expected 1 auto match, got %d", report.AutoMatched)
	}
	if report.Unmatched != 1 {
		t.Fatalf("expected 1 unmatched, got %d", report.Unmatched)
	}
	if report.Ghosted != 1 {
		t.Fatalf("expected 1 ghosted application, got %d", report.Ghosted)
	}

	got, err := mem.ApplicationByExternalID(ctx, "12345")
	if err != nil {
		t.Fatalf("loading application: %v", err)
	}
	if got.OutcomeStage != model.StageRejected {
		t.Fatalf("expected rejected after the board message, got %s", got.OutcomeStage)
	}
	if got.MatchedVia != MethodExternalID {
		t.Fatalf("expected external_id match method, got %q", got.MatchedVia)
	}

	apps, err := mem.ResolvedApplications(ctx)
	if err != nil {
		t.Fatalf("resolved applications: %v", err)
	}
	foundGhost := false
	for _, app := range apps {
		if app.ID == stale.ID && app.OutcomeStage == model.StageGhost {
			foundGhost = true
		}
	}
	if !foundGhost {
		t.Fatalf("expected the stale application to be ghosted")
	}

	cursor, err := mem.LastCursor(ctx, "default")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != "4" {
		t.Fatalf("expected cursor 4 after the run, got %q", cursor)
	}

	// a second run over the same export fetches nothing new and leaves
	// the recorded outcomes alone
	report, err = syncer.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Fetched != 0 || report.Ghosted != 0 {
		t.Fatalf("second run must be a no-op, got %+v", report)
	}
}
