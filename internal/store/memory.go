package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
)

// Memory is an in-process Store and CursorStore used in tests and for
// running without Postgres/Redis. All methods copy on the way in and out so
// callers cannot mutate stored state.
type Memory struct {
	mu sync.RWMutex

	postings     map[uuid.UUID]*model.JobPosting
	centroids    map[archetype.Archetype][]*model.MarketCentroid
	alerts       map[uuid.UUID]*model.DriftAlert
	variants     map[archetype.Archetype]*model.ResumeVariant
	applications map[uuid.UUID]*model.Application
	senders      map[string]*model.KnownSender

	cursors map[string]string
	seen    map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		postings:     make(map[uuid.UUID]*model.JobPosting),
		centroids:    make(map[archetype.Archetype][]*model.MarketCentroid),
		alerts:       make(map[uuid.UUID]*model.DriftAlert),
		variants:     make(map[archetype.Archetype]*model.ResumeVariant),
		applications: make(map[uuid.UUID]*model.Application),
		senders:      make(map[string]*model.KnownSender),
		cursors:      make(map[string]string),
		seen:         make(map[string]bool),
	}
}

func (m *Memory) UpsertPosting(_ context.Context, p *model.JobPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.postings[p.ID] = clonePosting(p)
	return nil
}

func (m *Memory) GetPosting(_ context.Context, id uuid.UUID) (*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.postings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePosting(p), nil
}

func (m *Memory) PendingPostings(_ context.Context) ([]*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.JobPosting, 0)
	for _, p := range m.postings {
		if !p.MarketIntelligenceOnly {
			out = append(out, clonePosting(p))
		}
	}
	sortPostings(out)
	return out, nil
}

func (m *Memory) PostingsSince(_ context.Context, a archetype.Archetype, since time.Time) ([]*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.JobPosting, 0)
	for _, p := range m.postings {
		if p.ArchetypePrimary == a && p.Classified() && !p.ClassifiedAt.Before(since) {
			out = append(out, clonePosting(p))
		}
	}
	sortPostings(out)
	return out, nil
}

func (m *Memory) UpdateQueueFields(_ context.Context, id uuid.UUID, fields QueueFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.postings[id]
	if !ok {
		return ErrNotFound
	}
	p.ArchetypePrimary = fields.ArchetypePrimary
	p.CombinedFit = fields.CombinedFit
	p.MarketIntelligenceOnly = fields.MarketIntelligenceOnly
	p.SelectionNeedsReview = fields.SelectionNeedsReview
	return nil
}

func (m *Memory) AppendCentroid(_ context.Context, c *model.MarketCentroid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.centroids[c.Archetype] = append(m.centroids[c.Archetype], cloneCentroid(c))
	return nil
}

func (m *Memory) LatestCentroid(_ context.Context, a archetype.Archetype) (*model.MarketCentroid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.centroids[a]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return cloneCentroid(rows[len(rows)-1]), nil
}

func (m *Memory) PreviousCentroid(_ context.Context, a archetype.Archetype) (*model.MarketCentroid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.centroids[a]
	if len(rows) < 2 {
		return nil, ErrNotFound
	}
	return cloneCentroid(rows[len(rows)-2]), nil
}

func (m *Memory) CreateAlert(_ context.Context, alert *model.DriftAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	m.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (m *Memory) AcknowledgeAlert(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	alert.Acknowledged = true
	return nil
}

func (m *Memory) UnacknowledgedAlerts(_ context.Context, a archetype.Archetype, alertType string) ([]*model.DriftAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.DriftAlert, 0)
	for _, alert := range m.alerts {
		if alert.Acknowledged {
			continue
		}
		if a != "" && alert.Archetype != a {
			continue
		}
		if alertType != "" && alert.Type != alertType {
			continue
		}
		out = append(out, cloneAlert(alert))
	}
	sortAlerts(out)
	return out, nil
}

func (m *Memory) RecentAlerts(_ context.Context, alertType string, since time.Time) ([]*model.DriftAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.DriftAlert, 0)
	for _, alert := range m.alerts {
		if alertType != "" && alert.Type != alertType {
			continue
		}
		if alert.CreatedAt.Before(since) {
			continue
		}
		out = append(out, cloneAlert(alert))
	}
	sortAlerts(out)
	return out, nil
}

func (m *Memory) UpsertVariant(_ context.Context, v *model.ResumeVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.variants[v.Archetype] = cloneVariant(v)
	return nil
}

func (m *Memory) GetVariant(_ context.Context, a archetype.Archetype) (*model.ResumeVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.variants[a]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneVariant(v), nil
}

func (m *Memory) Variants(_ context.Context) ([]*model.ResumeVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.ResumeVariant, 0, len(m.variants))
	for _, a := range archetype.All() {
		if v, ok := m.variants[a]; ok {
			out = append(out, cloneVariant(v))
		}
	}
	return out, nil
}

func (m *Memory) CreateApplication(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	m.applications[app.ID] = cloneApplication(app)
	return nil
}

func (m *Memory) RecentApplications(_ context.Context, since time.Time) ([]*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Application, 0)
	for _, app := range m.applications {
		if app.AppliedAt.Before(since) {
			continue
		}
		out = append(out, cloneApplication(app))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Memory) ResolvedApplications(_ context.Context) ([]*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Application, 0)
	for _, app := range m.applications {
		if app.OutcomeStage.Resolved() {
			out = append(out, cloneApplication(app))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Memory) ApplicationByExternalID(_ context.Context, externalID string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, app := range m.applications {
		if app.ExternalID != "" && app.ExternalID == externalID {
			return cloneApplication(app), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) TransitionOutcome(_ context.Context, id uuid.UUID, to model.OutcomeStage, via string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	if !model.StageTransitionAllowed(app.OutcomeStage, to) {
		return nil
	}
	app.OutcomeStage = to
	app.MatchedVia = via
	app.LastSignalAt = at
	return nil
}

func (m *Memory) KnownSender(_ context.Context, address string) (*model.KnownSender, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.senders[strings.ToLower(address)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// AddKnownSender registers a recruiting address for sender-reputation
// matching.
func (m *Memory) AddKnownSender(s *model.KnownSender) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.senders[strings.ToLower(s.Address)] = &cp
}

func (m *Memory) LastCursor(_ context.Context, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[account], nil
}

func (m *Memory) SetCursor(_ context.Context, account, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[account] = cursor
	return nil
}

func (m *Memory) SeenMessage(_ context.Context, messageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen[messageID], nil
}

func (m *Memory) MarkMessage(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[messageID] = true
	return nil
}

// The clone helpers copy the reference fields too, so a caller holding a
// returned row can never reach stored state through a shared slice or map.

func clonePosting(p *model.JobPosting) *model.JobPosting {
	cp := *p
	cp.Embedding = slices.Clone(p.Embedding)
	cp.ArchetypeScores = maps.Clone(p.ArchetypeScores)
	cp.TechTags = slices.Clone(p.TechTags)
	return &cp
}

func cloneCentroid(c *model.MarketCentroid) *model.MarketCentroid {
	cp := *c
	cp.Centroid = slices.Clone(c.Centroid)
	return &cp
}

func cloneAlert(alert *model.DriftAlert) *model.DriftAlert {
	cp := *alert
	if alert.Details != nil {
		cp.Details = make(map[string]any, len(alert.Details))
		for k, v := range alert.Details {
			// term lists are the only slice-valued details
			if ss, ok := v.([]string); ok {
				v = slices.Clone(ss)
			}
			cp.Details[k] = v
		}
	}
	return &cp
}

func cloneVariant(v *model.ResumeVariant) *model.ResumeVariant {
	cp := *v
	cp.Embedding = slices.Clone(v.Embedding)
	if v.LastRewritten != nil {
		t := *v.LastRewritten
		cp.LastRewritten = &t
	}
	return &cp
}

func cloneApplication(app *model.Application) *model.Application {
	cp := *app
	cp.TechTags = slices.Clone(app.TechTags)
	return &cp
}

func sortPostings(postings []*model.JobPosting) {
	sort.Slice(postings, func(i, j int) bool {
		if !postings[i].PostedAt.Equal(postings[j].PostedAt) {
			return postings[i].PostedAt.After(postings[j].PostedAt)
		}
		return postings[i].ID.String() < postings[j].ID.String()
	})
}

func sortAlerts(alerts []*model.DriftAlert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID.String() < alerts[j].ID.String()
	})
}
