// Package store defines the persistence boundary of the core. The
// algorithms never touch a database directly; they read snapshots and write
// single-row upserts through these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
)

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("not found")

// QueueFields are the only posting fields mutated after classification.
type QueueFields struct {
	ArchetypePrimary       archetype.Archetype
	CombinedFit            float64
	MarketIntelligenceOnly bool
	SelectionNeedsReview   bool
}

// Store is the persistence interface the core consumes.
type Store interface {
	// Postings.
	UpsertPosting(ctx context.Context, p *model.JobPosting) error
	GetPosting(ctx context.Context, id uuid.UUID) (*model.JobPosting, error)
	PendingPostings(ctx context.Context) ([]*model.JobPosting, error)
	PostingsSince(ctx context.Context, a archetype.Archetype, since time.Time) ([]*model.JobPosting, error)
	UpdateQueueFields(ctx context.Context, id uuid.UUID, fields QueueFields) error

	// Centroid time series, append-only.
	AppendCentroid(ctx context.Context, c *model.MarketCentroid) error
	LatestCentroid(ctx context.Context, a archetype.Archetype) (*model.MarketCentroid, error)
	PreviousCentroid(ctx context.Context, a archetype.Archetype) (*model.MarketCentroid, error)

	// Drift alerts.
	CreateAlert(ctx context.Context, alert *model.DriftAlert) error
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) error
	UnacknowledgedAlerts(ctx context.Context, a archetype.Archetype, alertType string) ([]*model.DriftAlert, error)
	RecentAlerts(ctx context.Context, alertType string, since time.Time) ([]*model.DriftAlert, error)

	// Resume variants, one per archetype.
	UpsertVariant(ctx context.Context, v *model.ResumeVariant) error
	GetVariant(ctx context.Context, a archetype.Archetype) (*model.ResumeVariant, error)
	Variants(ctx context.Context) ([]*model.ResumeVariant, error)

	// Applications.
	CreateApplication(ctx context.Context, app *model.Application) error
	RecentApplications(ctx context.Context, since time.Time) ([]*model.Application, error)
	ResolvedApplications(ctx context.Context) ([]*model.Application, error)
	ApplicationByExternalID(ctx context.Context, externalID string) (*model.Application, error)
	TransitionOutcome(ctx context.Context, id uuid.UUID, to model.OutcomeStage, via string, at time.Time) error

	// Known recruiting senders.
	KnownSender(ctx context.Context, address string) (*model.KnownSender, error)
}

// CursorStore tracks message-sync progress. The cursor advances only past
// fully processed batches; individual messages are deduplicated by their
// stable source identifier.
type CursorStore interface {
	LastCursor(ctx context.Context, account string) (string, error)
	SetCursor(ctx context.Context, account, cursor string) error
	SeenMessage(ctx context.Context, messageID string) (bool, error)
	MarkMessage(ctx context.Context, messageID string) error
}
