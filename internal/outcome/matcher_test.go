package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

func TestExtractExternalID(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"Your application for job 12345 was not successful this time.", "12345"},
		{"Reference number: 987654", "987654"},
		{"Req #44556 has been updated", "44556"},
		{"We received your application.", ""},
		{"Call me on 0412 345 678", ""},
	}

	for _, tc := range cases {
		if got := ExtractExternalID(tc.body); got != tc.want {
			t.Fatalf("ExtractExternalID(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestTokenSimilarity(t *testing.T) {
	if got := tokenSimilarity("acme", "Acme Pty Ltd"); got != 1 {
		t.Fatalf("overlap of a contained token set must be 1, got %v", got)
	}
	if got := tokenSimilarity("Senior Data Engineer", "about your senior data engineer application"); got != 1 {
		t.Fatalf("title fully contained in text must score 1, got %v", got)
	}
	if got := tokenSimilarity("Data Engineer", "yoga class schedule"); got != 0 {
		t.Fatalf("disjoint sets must score 0, got %v", got)
	}
	if got := tokenSimilarity("", "anything"); got != 0 {
		t.Fatalf("empty input must score 0, got %v", got)
	}
}

func TestRootDomainToken(t *testing.T) {
	if got := rootDomainToken("mail.acme.com"); got != "acme" {
		t.Fatalf("got %q, want acme", got)
	}
	if got := rootDomainToken("seek.com"); got != "seek" {
		t.Fatalf("got %q, want seek", got)
	}
	if got := rootDomainToken("localhost"); got != "localhost" {
		t.Fatalf("got %q, want localhost", got)
	}
}

func newTestMatcher(t *testing.T, mem *store.Memory) *Matcher {
	t.Helper()

	m, err := NewMatcher(DefaultMatchConfig(), mem, nil)
	if err != nil {
		t.Fatalf("building matcher: %v", err)
	}
	return m
}

func TestMatchViaExternalID(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	matcher := newTestMatcher(t, mem)

	mem.AddKnownSender(&model.KnownSender{Address: "noreply@seek.com", JobBoard: true})

	app := &model.Application{
		ExternalID:   "12345",
		Company:      "Acme",
		Title:        "Senior Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    time.Now().AddDate(0, 0, -10),
	}
	if err := mem.CreateApplication(ctx, app); err != nil {
		t.Fatalf("seeding application: %v", err)
	}

	msg := &model.InboundMessage{
		MessageID:    "m1",
		Sender:       "noreply@seek.com",
		SenderDomain: "seek.com",
		Body:         "Your application for job 12345 was not successful this time.",
		ReceivedAt:   time.Now(),
	}

	match := matcher.Match(ctx, msg, nil)
	if match.Status != StatusAutoMatched {
		t.Fatalf("expected auto match, got %s", match.Status)
	}
	if match.Method != MethodExternalID {
		t.Fatalf("expected external_id method, got %s", match.Method)
	}
	if match.Application == nil || match.Application.ID != app.ID {
		t.Fatalf("matched the wrong application")
	}
}

func TestMatchScoredFallbackViaDomain(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	matcher := newTestMatcher(t, mem)

	now := time.Now()
	acme := &model.Application{
		Company:           "Acme Pty Ltd",
		Title:             "Senior Data Engineer",
		ResumeVariantSent: archetype.Builder,
		OutcomeStage:      model.StageApplied,
		AppliedAt:         now.AddDate(0, 0, -10),
	}
	globex := &model.Application{
		Company:      "Globex",
		Title:        "Platform Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -5),
	}
	for _, app := range []*model.Application{acme, globex} {
		if err := mem.CreateApplication(ctx, app); err != nil {
			t.Fatalf("seeding application: %v", err)
		}
	}

	msg := &model.InboundMessage{
		MessageID:    "m2",
		Sender:       "recruiter@mail.acme.com",
		SenderDomain: "mail.acme.com",
		Subject:      "Re: Senior Data Engineer application",
		Body:         "Thanks for applying, we would like to speak with you.",
		ReceivedAt:   now,
	}

	match := matcher.Match(ctx, msg, []*model.Application{acme, globex})
	if match.Status != StatusAutoMatched {
		t.Fatalf("expected auto match, got %s", match.Status)
	}
	if match.Method != MethodScored {
		t.Fatalf("expected scored method, got %s", match.Method)
	}
	if match.Application.ID != acme.ID {
		t.Fatalf("domain narrowing must pick the acme application")
	}
}

func TestMatchAmbiguousGoesToManualReview(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	matcher := newTestMatcher(t, mem)

	now := time.Now()
	first := &model.Application{
		Company:      "Acme Pty Ltd",
		Title:        "Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -7),
	}
	second := &model.Application{
		Company:      "Acme Pty Ltd",
		Title:        "Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -14),
	}

	msg := &model.InboundMessage{
		MessageID:    "m3",
		Sender:       "talent@acme.com",
		SenderDomain: "acme.com",
		Subject:      "Your Data Engineer application",
		Body:         "We have received your application.",
		ReceivedAt:   now,
	}

	match := matcher.Match(ctx, msg, []*model.Application{first, second})
	if match.Status != StatusManualReview {
		t.Fatalf("expected manual review for near-identical scores, got %s", match.Status)
	}
	if len(match.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(match.Candidates))
	}
	if match.Application != nil {
		t.Fatalf("manual review must not carry a matched application")
	}
}

func TestMatchUnrelatedMessageIsUnmatched(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	matcher := newTestMatcher(t, mem)

	now := time.Now()
	app := &model.Application{
		Company:      "Acme",
		Title:        "Senior Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -10),
	}

	msg := &model.InboundMessage{
		MessageID:    "m4",
		Sender:       "offers@randomgym.com",
		SenderDomain: "randomgym.com",
		Subject:      "Special offer",
		Body:         "Discounted yoga class memberships this week.",
		ReceivedAt:   now,
	}

	match := matcher.Match(ctx, msg, []*model.Application{app})
	if match.Status != StatusUnmatched {
		t.Fatalf("expected unmatched, got %s", match.Status)
	}
}

func TestMatchForeignDomainMentioningTitleIsUnmatched(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	matcher := newTestMatcher(t, mem)

	now := time.Now()
	app := &model.Application{
		Company:      "Acme Pty Ltd",
		Title:        "Senior Data Engineer",
		OutcomeStage: model.StageApplied,
		AppliedAt:    now.AddDate(0, 0, -5),
	}

	// title similarity and recency alone would clear the scoring bar, but
	// the sender domain matches no application company
	msg := &model.InboundMessage{
		MessageID:    "m5",
		Sender:       "digest@jobsnewsletter.io",
		SenderDomain: "jobsnewsletter.io",
		Subject:      "This week: Senior Data Engineer roles",
		Body:         "Unfortunately the market cooled, but Senior Data Engineer openings are still out there.",
		ReceivedAt:   now,
	}

	match := matcher.Match(ctx, msg, []*model.Application{app})
	if match.Status != StatusUnmatched {
		t.Fatalf("expected unmatched for a foreign domain, got %s", match.Status)
	}
	if match.Application != nil {
		t.Fatalf("foreign domain must never resolve to an application")
	}
}
