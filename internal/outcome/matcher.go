package outcome

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

// Status is the tagged outcome of the matching cascade. Callers must
// branch on it; a manual-review result is never a match.
type Status string

const (
	StatusAutoMatched  Status = "auto_matched"
	StatusManualReview Status = "manual_review"
	StatusUnmatched    Status = "unmatched"
)

// Match methods recorded on the application.
const (
	MethodExternalID = "external_id"
	MethodScored     = "scored"
)

// Candidate is one scored application surfaced for manual review.
type Candidate struct {
	Application *model.Application
	Score       float64
}

// Match is the cascade result. Application is set only for auto matches;
// Candidates only for manual review.
type Match struct {
	Status      Status
	Method      string
	Application *model.Application
	Candidates  []Candidate
}

const (
	defaultScoreGate        = 0.2
	defaultAutoThreshold    = 0.5
	defaultAutoMargin       = 0.12
	defaultCompanyKnown     = 0.7
	defaultCompanyDomain    = 0.5
	defaultTechTagBonus     = 0.05
	defaultRecencyBonus30   = 0.2
	defaultRecencyBonus60   = 0.1
	defaultReviewCandidates = 3
)

// MatchConfig carries the cascade thresholds. Hand-tuned defaults.
type MatchConfig struct {
	// ScoreGate is the minimum title similarity to even enter scoring.
	ScoreGate float64
	// AutoThreshold is the minimum top score for an automatic match.
	AutoThreshold float64
	// AutoMargin is the gap the top score must hold over the runner-up
	// unless it is the only candidate.
	AutoMargin float64
	// CompanyKnownThreshold gates company fuzzy matching for known senders.
	CompanyKnownThreshold float64
	// CompanyDomainThreshold gates the weaker domain-token fuzzy match.
	CompanyDomainThreshold float64
	// TechTagBonus is added per technology tag found in the body.
	TechTagBonus float64
	// RecencyBonus30/60 reward messages arriving within 30/60 days of the
	// application.
	RecencyBonus30 float64
	RecencyBonus60 float64
	// ReviewCandidates bounds the list surfaced for manual review.
	ReviewCandidates int
}

// DefaultMatchConfig returns the tuned defaults.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ScoreGate:              defaultScoreGate,
		AutoThreshold:          defaultAutoThreshold,
		AutoMargin:             defaultAutoMargin,
		CompanyKnownThreshold:  defaultCompanyKnown,
		CompanyDomainThreshold: defaultCompanyDomain,
		TechTagBonus:           defaultTechTagBonus,
		RecencyBonus30:         defaultRecencyBonus30,
		RecencyBonus60:         defaultRecencyBonus60,
		ReviewCandidates:       defaultReviewCandidates,
	}
}

// Validate rejects configurations where the auto bar sits below the gate.
func (c MatchConfig) Validate() error {
	if c.ScoreGate < 0 || c.AutoThreshold <= c.ScoreGate {
		return fmt.Errorf("auto threshold (%v) must exceed the score gate (%v)", c.AutoThreshold, c.ScoreGate)
	}
	if c.AutoMargin <= 0 {
		return fmt.Errorf("auto margin must be positive, got %v", c.AutoMargin)
	}
	if c.ReviewCandidates <= 0 {
		return fmt.Errorf("review candidate count must be positive, got %d", c.ReviewCandidates)
	}
	return nil
}

// Matcher runs the staged matching cascade. Matching is read-only scoring
// against a snapshot of recent applications and is safe to run across
// messages concurrently.
type Matcher struct {
	cfg    MatchConfig
	store  store.Store
	logger *zap.Logger
}

// NewMatcher validates the config and builds the matcher.
func NewMatcher(cfg MatchConfig, st store.Store, log *zap.Logger) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("match config: %w", err)
	}
	return &Matcher{cfg: cfg, store: st, logger: logger.WithComponent(log, "matcher")}, nil
}

var externalIDPattern = regexp.MustCompile(`(?i)\b(?:job|posting|position|reference|ref|req)\s*(?:id|number|no\.?|#)?\s*[:#]?\s*(\d{4,})`)

// ExtractExternalID pulls a job-board posting identifier out of the
// message body, or "" when none is present.
func ExtractExternalID(body string) string {
	m := externalIDPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

// Match runs the cascade in order, short-circuiting on a confident hit:
// exact external ID, sender-reputation narrowing, then scored fallback.
func (m *Matcher) Match(ctx context.Context, msg *model.InboundMessage, recent []*model.Application) Match {
	sender, _ := m.knownSender(ctx, msg.Sender)

	// Stage 1: exact external ID for known job boards.
	if sender != nil && sender.JobBoard {
		if id := ExtractExternalID(msg.Body); id != "" {
			app, err := m.store.ApplicationByExternalID(ctx, id)
			if err == nil {
				return Match{Status: StatusAutoMatched, Method: MethodExternalID, Application: app}
			}
			if !errors.Is(err, store.ErrNotFound) && m.logger != nil {
				m.logger.Warn("external id lookup failed", zap.String("external_id", id), zap.Error(err))
			}
		}
	}

	// Stage 2: narrow candidates by sender reputation or root domain.
	candidates := m.narrowCandidates(msg, sender, recent)
	if len(candidates) == 0 {
		return Match{Status: StatusUnmatched}
	}

	// Stage 3: scored fallback over whatever is left.
	return m.scoreCandidates(msg, candidates)
}

func (m *Matcher) knownSender(ctx context.Context, address string) (*model.KnownSender, error) {
	sender, err := m.store.KnownSender(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sender, err
}

// narrowCandidates restricts the application snapshot to plausible
// companies. A known sender maps straight to a company name; otherwise the
// root domain token stands in with a weaker threshold.
func (m *Matcher) narrowCandidates(msg *model.InboundMessage, sender *model.KnownSender, recent []*model.Application) []*model.Application {
	if sender != nil && sender.Company != "" {
		narrowed := make([]*model.Application, 0, len(recent))
		for _, app := range recent {
			if tokenSimilarity(sender.Company, app.Company) > m.cfg.CompanyKnownThreshold {
				narrowed = append(narrowed, app)
			}
		}
		return narrowed
	}

	root := rootDomainToken(msg.SenderDomain)
	if root == "" {
		return recent
	}

	narrowed := make([]*model.Application, 0, len(recent))
	for _, app := range recent {
		if tokenSimilarity(root, app.Company) > m.cfg.CompanyDomainThreshold {
			narrowed = append(narrowed, app)
		}
	}
	// a domain that matches no application company restricts to nothing;
	// title similarity alone must never resolve a stage transition
	return narrowed
}

// scoreCandidates ranks candidates by title similarity plus tech-tag and
// recency bonuses, auto-matching only a clear winner.
func (m *Matcher) scoreCandidates(msg *model.InboundMessage, candidates []*model.Application) Match {
	text := msg.Subject + " " + msg.Body
	lowerBody := strings.ToLower(msg.Body)

	scored := make([]Candidate, 0, len(candidates))
	for _, app := range candidates {
		similarity := tokenSimilarity(app.Title, text)
		if similarity <= m.cfg.ScoreGate {
			continue
		}

		score := similarity
		for _, tag := range app.TechTags {
			if strings.Contains(lowerBody, strings.ToLower(tag)) {
				score += m.cfg.TechTagBonus
			}
		}

		age := msg.ReceivedAt.Sub(app.AppliedAt)
		switch {
		case age >= 0 && age <= 30*24*time.Hour:
			score += m.cfg.RecencyBonus30
		case age > 30*24*time.Hour && age <= 60*24*time.Hour:
			score += m.cfg.RecencyBonus60
		}

		scored = append(scored, Candidate{Application: app, Score: score})
	}

	if len(scored) == 0 {
		return Match{Status: StatusUnmatched}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	top := scored[0]
	clearWinner := len(scored) == 1 || top.Score-scored[1].Score > m.cfg.AutoMargin
	if top.Score > m.cfg.AutoThreshold && clearWinner {
		return Match{Status: StatusAutoMatched, Method: MethodScored, Application: top.Application}
	}

	if len(scored) > m.cfg.ReviewCandidates {
		scored = scored[:m.cfg.ReviewCandidates]
	}
	return Match{Status: StatusManualReview, Candidates: scored}
}

var similarityTokens = regexp.MustCompile(`[a-z0-9]+`)

// tokenSimilarity is the token overlap coefficient: shared tokens over the
// smaller token set. Jaccard proper would let a long message body drown a
// three-word job title.
func tokenSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}

	shared := 0
	for tok := range smaller {
		if larger[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range similarityTokens.FindAllString(strings.ToLower(s), -1) {
		set[tok] = true
	}
	return set
}

// rootDomainToken derives the company-ish token from a sender domain:
// "mail.acme.com" yields "acme".
func rootDomainToken(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return domain
	}
	return parts[len(parts)-2]
}
