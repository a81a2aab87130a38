// Package postgres implements the persistence interface on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/store"
)

//go:embed schema.sql
var schema string

// Store is the pgx-backed persistence layer.
type Store struct {
	pool *pgxpool.Pool
}

// New creates and verifies a pooled connection, then ensures the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) UpsertPosting(ctx context.Context, p *model.JobPosting) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	scores, err := marshalScores(p.ArchetypeScores)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO job_postings (
			id, external_id, source, title, company, description, posted_at,
			embedding, archetype_scores, archetype_primary, job_type,
			seniority, tech_tags, classified_at, combined_fit,
			market_intelligence_only, selection_needs_review
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			archetype_scores = EXCLUDED.archetype_scores,
			archetype_primary = EXCLUDED.archetype_primary,
			job_type = EXCLUDED.job_type,
			seniority = EXCLUDED.seniority,
			tech_tags = EXCLUDED.tech_tags,
			classified_at = EXCLUDED.classified_at,
			combined_fit = EXCLUDED.combined_fit,
			market_intelligence_only = EXCLUDED.market_intelligence_only,
			selection_needs_review = EXCLUDED.selection_needs_review`,
		p.ID, p.ExternalID, p.Source, p.Title, p.Company, p.Description, p.PostedAt,
		p.Embedding, scores, string(p.ArchetypePrimary), string(p.JobType),
		string(p.Seniority), p.TechTags, nullTime(p.ClassifiedAt), p.CombinedFit,
		p.MarketIntelligenceOnly, p.SelectionNeedsReview,
	)
	if err != nil {
		return fmt.Errorf("upserting posting: %w", err)
	}
	return nil
}

const postingColumns = `
	id, external_id, source, title, company, description, posted_at,
	embedding, archetype_scores, archetype_primary, job_type, seniority,
	tech_tags, classified_at, combined_fit, market_intelligence_only,
	selection_needs_review`

func (s *Store) GetPosting(ctx context.Context, id uuid.UUID) (*model.JobPosting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM job_postings WHERE id = $1`, id)
	return scanPosting(row)
}

func (s *Store) PendingPostings(ctx context.Context) ([]*model.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postingColumns+`
		FROM job_postings
		WHERE NOT market_intelligence_only
		ORDER BY posted_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying pending postings: %w", err)
	}
	defer rows.Close()
	return scanPostings(rows)
}

func (s *Store) PostingsSince(ctx context.Context, a archetype.Archetype, since time.Time) ([]*model.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postingColumns+`
		FROM job_postings
		WHERE archetype_primary = $1 AND classified_at >= $2
		ORDER BY posted_at DESC, id`, string(a), since)
	if err != nil {
		return nil, fmt.Errorf("querying postings since: %w", err)
	}
	defer rows.Close()
	return scanPostings(rows)
}

func (s *Store) UpdateQueueFields(ctx context.Context, id uuid.UUID, fields store.QueueFields) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE job_postings
		SET archetype_primary = $2, combined_fit = $3,
		    market_intelligence_only = $4, selection_needs_review = $5
		WHERE id = $1`,
		id, string(fields.ArchetypePrimary), fields.CombinedFit,
		fields.MarketIntelligenceOnly, fields.SelectionNeedsReview,
	)
	if err != nil {
		return fmt.Errorf("updating queue fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendCentroid(ctx context.Context, c *model.MarketCentroid) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO market_centroids (archetype, window_start, window_end, centroid, jd_count, shift_from_previous)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		string(c.Archetype), c.WindowStart, c.WindowEnd, c.Centroid, c.JDCount, c.ShiftFromPrevious,
	)
	if err != nil {
		return fmt.Errorf("appending centroid: %w", err)
	}
	return nil
}

func (s *Store) LatestCentroid(ctx context.Context, a archetype.Archetype) (*model.MarketCentroid, error) {
	return s.centroidAt(ctx, a, 0)
}

func (s *Store) PreviousCentroid(ctx context.Context, a archetype.Archetype) (*model.MarketCentroid, error) {
	return s.centroidAt(ctx, a, 1)
}

func (s *Store) centroidAt(ctx context.Context, a archetype.Archetype, offset int) (*model.MarketCentroid, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT archetype, window_start, window_end, centroid, jd_count, shift_from_previous
		FROM market_centroids
		WHERE archetype = $1
		ORDER BY id DESC
		OFFSET $2 LIMIT 1`, string(a), offset)

	var c model.MarketCentroid
	var arch string
	err := row.Scan(&arch, &c.WindowStart, &c.WindowEnd, &c.Centroid, &c.JDCount, &c.ShiftFromPrevious)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning centroid: %w", err)
	}
	c.Archetype = archetype.Archetype(arch)
	return &c, nil
}

func (s *Store) CreateAlert(ctx context.Context, alert *model.DriftAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	details, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("marshaling alert details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO drift_alerts (id, archetype, alert_type, metric_value, threshold_value, details, acknowledged, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		alert.ID, string(alert.Archetype), alert.Type, alert.MetricValue,
		alert.ThresholdValue, details, alert.Acknowledged, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating alert: %w", err)
	}
	return nil
}

func (s *Store) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE drift_alerts SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UnacknowledgedAlerts(ctx context.Context, a archetype.Archetype, alertType string) ([]*model.DriftAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, archetype, alert_type, metric_value, threshold_value, details, acknowledged, created_at
		FROM drift_alerts
		WHERE NOT acknowledged
		  AND ($1 = '' OR archetype = $1)
		  AND ($2 = '' OR alert_type = $2)
		ORDER BY created_at DESC, id`, string(a), alertType)
	if err != nil {
		return nil, fmt.Errorf("querying unacknowledged alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *Store) RecentAlerts(ctx context.Context, alertType string, since time.Time) ([]*model.DriftAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, archetype, alert_type, metric_value, threshold_value, details, acknowledged, created_at
		FROM drift_alerts
		WHERE created_at >= $2 AND ($1 = '' OR alert_type = $1)
		ORDER BY created_at DESC, id`, alertType, since)
	if err != nil {
		return nil, fmt.Errorf("querying recent alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *Store) UpsertVariant(ctx context.Context, v *model.ResumeVariant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resume_variants (archetype, content_ref, content_hash, embedding, alignment_score, last_rewritten, refreshed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (archetype) DO UPDATE SET
			content_ref = EXCLUDED.content_ref,
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding,
			alignment_score = EXCLUDED.alignment_score,
			last_rewritten = EXCLUDED.last_rewritten,
			refreshed_at = EXCLUDED.refreshed_at`,
		string(v.Archetype), v.ContentRef, v.ContentHash, v.Embedding,
		v.AlignmentScore, v.LastRewritten, v.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting variant: %w", err)
	}
	return nil
}

func (s *Store) GetVariant(ctx context.Context, a archetype.Archetype) (*model.ResumeVariant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT archetype, content_ref, content_hash, embedding, alignment_score, last_rewritten, refreshed_at
		FROM resume_variants WHERE archetype = $1`, string(a))
	return scanVariant(row)
}

func (s *Store) Variants(ctx context.Context) ([]*model.ResumeVariant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT archetype, content_ref, content_hash, embedding, alignment_score, last_rewritten, refreshed_at
		FROM resume_variants ORDER BY archetype`)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	var out []*model.ResumeVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) CreateApplication(ctx context.Context, app *model.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (
			id, job_id, external_id, source, company, title, tech_tags,
			resume_variant_sent, resume_content_hash, outcome_stage,
			matched_via, applied_at, last_signal_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		app.ID, app.JobID, app.ExternalID, app.Source, app.Company, app.Title,
		app.TechTags, string(app.ResumeVariantSent), app.ResumeContentHash,
		string(app.OutcomeStage), app.MatchedVia, app.AppliedAt, nullTime(app.LastSignalAt),
	)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	return nil
}

const applicationColumns = `
	id, job_id, external_id, source, company, title, tech_tags,
	resume_variant_sent, resume_content_hash, outcome_stage, matched_via,
	applied_at, last_signal_at`

func (s *Store) RecentApplications(ctx context.Context, since time.Time) ([]*model.Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications WHERE applied_at >= $1
		ORDER BY applied_at DESC, id`, since)
	if err != nil {
		return nil, fmt.Errorf("querying recent applications: %w", err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

func (s *Store) ResolvedApplications(ctx context.Context) ([]*model.Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE outcome_stage IN ('viewed','interview_request','rejected','offer','ghost')
		ORDER BY applied_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying resolved applications: %w", err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

func (s *Store) ApplicationByExternalID(ctx context.Context, externalID string) (*model.Application, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications WHERE external_id = $1 AND external_id <> ''
		ORDER BY applied_at DESC LIMIT 1`, externalID)
	return scanApplication(row)
}

// TransitionOutcome applies a forward-only stage change; disallowed
// transitions are ignored, matching the monotonic lifecycle.
func (s *Store) TransitionOutcome(ctx context.Context, id uuid.UUID, to model.OutcomeStage, via string, at time.Time) error {
	app, err := s.applicationByID(ctx, id)
	if err != nil {
		return err
	}
	if !model.StageTransitionAllowed(app.OutcomeStage, to) {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE applications
		SET outcome_stage = $2, matched_via = $3, last_signal_at = $4
		WHERE id = $1`, id, string(to), via, at)
	if err != nil {
		return fmt.Errorf("transitioning outcome: %w", err)
	}
	return nil
}

func (s *Store) applicationByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

func (s *Store) KnownSender(ctx context.Context, address string) (*model.KnownSender, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT address, company, job_board FROM known_senders WHERE address = lower($1)`, address)

	var sender model.KnownSender
	err := row.Scan(&sender.Address, &sender.Company, &sender.JobBoard)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning known sender: %w", err)
	}
	return &sender, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*model.JobPosting, error) {
	var (
		p            model.JobPosting
		scores       []byte
		primary      string
		jobType      string
		seniority    string
		classifiedAt *time.Time
	)

	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Source, &p.Title, &p.Company, &p.Description,
		&p.PostedAt, &p.Embedding, &scores, &primary, &jobType, &seniority,
		&p.TechTags, &classifiedAt, &p.CombinedFit, &p.MarketIntelligenceOnly,
		&p.SelectionNeedsReview,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning posting: %w", err)
	}

	p.ArchetypePrimary = archetype.Archetype(primary)
	p.JobType = archetype.JobType(jobType)
	p.Seniority = archetype.Seniority(seniority)
	if classifiedAt != nil {
		p.ClassifiedAt = *classifiedAt
	}
	if p.ArchetypeScores, err = unmarshalScores(scores); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPostings(rows pgx.Rows) ([]*model.JobPosting, error) {
	var out []*model.JobPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanAlerts(rows pgx.Rows) ([]*model.DriftAlert, error) {
	var out []*model.DriftAlert
	for rows.Next() {
		var (
			alert   model.DriftAlert
			arch    string
			details []byte
		)
		if err := rows.Scan(&alert.ID, &arch, &alert.Type, &alert.MetricValue,
			&alert.ThresholdValue, &details, &alert.Acknowledged, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alert.Archetype = archetype.Archetype(arch)
		if err := json.Unmarshal(details, &alert.Details); err != nil {
			return nil, fmt.Errorf("unmarshaling alert details: %w", err)
		}
		out = append(out, &alert)
	}
	return out, rows.Err()
}

func scanVariant(row rowScanner) (*model.ResumeVariant, error) {
	var (
		v    model.ResumeVariant
		arch string
	)
	err := row.Scan(&arch, &v.ContentRef, &v.ContentHash, &v.Embedding,
		&v.AlignmentScore, &v.LastRewritten, &v.RefreshedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning variant: %w", err)
	}
	v.Archetype = archetype.Archetype(arch)
	return &v, nil
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		app          model.Application
		variant      string
		stage        string
		lastSignalAt *time.Time
	)
	err := row.Scan(&app.ID, &app.JobID, &app.ExternalID, &app.Source,
		&app.Company, &app.Title, &app.TechTags, &variant,
		&app.ResumeContentHash, &stage, &app.MatchedVia, &app.AppliedAt,
		&lastSignalAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning application: %w", err)
	}
	app.ResumeVariantSent = archetype.Archetype(variant)
	app.OutcomeStage = model.OutcomeStage(stage)
	if lastSignalAt != nil {
		app.LastSignalAt = *lastSignalAt
	}
	return &app, nil
}

func scanApplications(rows pgx.Rows) ([]*model.Application, error) {
	var out []*model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func marshalScores(scores map[archetype.Archetype]float64) ([]byte, error) {
	plain := make(map[string]float64, len(scores))
	for a, s := range scores {
		plain[string(a)] = s
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("marshaling archetype scores: %w", err)
	}
	return data, nil
}

func unmarshalScores(data []byte) (map[archetype.Archetype]float64, error) {
	var plain map[string]float64
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("unmarshaling archetype scores: %w", err)
	}
	if len(plain) == 0 {
		return nil, nil
	}
	scores := make(map[archetype.Archetype]float64, len(plain))
	for a, s := range plain {
		scores[archetype.Archetype(a)] = s
	}
	return scores, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
