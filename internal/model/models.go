// Package model holds the entities shared by the classifier, the queue
// gating service, the drift engine and the outcome pipeline.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jobtide/jobtide/internal/archetype"
)

// JobPosting is a single ingested posting. The classifier fills the
// embedding, scores and metadata once; afterwards only the queue-gating
// fields (CombinedFit, MarketIntelligenceOnly, SelectionNeedsReview) change.
type JobPosting struct {
	ID          uuid.UUID
	ExternalID  string
	Source      string
	Title       string
	Company     string
	Description string
	PostedAt    time.Time

	Embedding        []float64
	ArchetypeScores  map[archetype.Archetype]float64
	ArchetypePrimary archetype.Archetype
	JobType          archetype.JobType
	Seniority        archetype.Seniority
	TechTags         []string
	ClassifiedAt     time.Time

	CombinedFit            float64
	MarketIntelligenceOnly bool
	SelectionNeedsReview   bool
}

// Classified reports whether the posting has been through the classifier.
func (p *JobPosting) Classified() bool {
	return len(p.ArchetypeScores) > 0
}

// ResumeVariant is the resume artifact mapped to one archetype, together
// with its alignment against the archetype's current centroid. Alignment is
// keyed by ContentHash so it is only recomputed when the artifact changes.
type ResumeVariant struct {
	Archetype      archetype.Archetype
	ContentRef     string
	ContentHash    string
	Embedding      []float64
	AlignmentScore float64
	LastRewritten  *time.Time
	RefreshedAt    time.Time
}

// MarketCentroid is one row of the append-only centroid time series. Rows
// are never mutated, only superseded by a newer window.
type MarketCentroid struct {
	Archetype         archetype.Archetype
	WindowStart       time.Time
	WindowEnd         time.Time
	Centroid          []float64
	JDCount           int
	ShiftFromPrevious float64
}

// Alert types raised by the drift engine.
const (
	AlertMarketShift      = "market_shift"
	AlertResumeStale      = "resume_stale"
	AlertRewriteTriggered = "rewrite_triggered"
)

// DriftAlert is raised by the drift engine and acknowledged either by a
// human or automatically when superseded by a rewrite trigger.
type DriftAlert struct {
	ID             uuid.UUID
	Archetype      archetype.Archetype
	Type           string
	MetricValue    float64
	ThresholdValue float64
	Details        map[string]any
	Acknowledged   bool
	CreatedAt      time.Time
}

// Application records one submitted application and its outcome so far.
type Application struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	ExternalID        string
	Source            string
	Company           string
	Title             string
	TechTags          []string
	ResumeVariantSent archetype.Archetype
	ResumeContentHash string
	OutcomeStage      OutcomeStage
	MatchedVia        string
	AppliedAt         time.Time
	LastSignalAt      time.Time
}

// InboundMessage is a deduplicated email or call transcript. Immutable once
// ingested; MessageID is the dedup key.
type InboundMessage struct {
	MessageID            string
	Sender               string
	SenderDomain         string
	Subject              string
	Body                 string
	ReceivedAt           time.Time
	Classification       string
	MatchedApplicationID *uuid.UUID
	RequiresManualReview bool
}

// KnownSender maps a recruiting address to the company it represents.
type KnownSender struct {
	Address  string
	Company  string
	JobBoard bool
}
