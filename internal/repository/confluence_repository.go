package repository

import (
	"context"
	"encoding/json"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// ConfluenceRepository persists confluence snapshots and their resolved
// outcomes. Outcomes feed the direction classifier's training set.
type ConfluenceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewConfluenceRepository(pool PgxPool, tracer trace.Tracer) *ConfluenceRepository {
	return &ConfluenceRepository{pool: pool, tracer: tracer}
}

func (r *ConfluenceRepository) SaveConfluenceSnapshot(ctx context.Context, score *domain.ConfluenceScore) error {
	_, span := r.tracer.Start(ctx, "confluence-repo.save-snapshot")
	defer span.End()

	components, err := json.Marshal(score.Breakdown.Components)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO confluence_snapshots
		     (symbol, observed_at, confluence_score, directional_bias, level, confidence,
		      components_used, components, meets_minimum, meets_high)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		score.Symbol, score.Timestamp, score.ConfluenceScore, score.DirectionalBias,
		string(score.ConfluenceLevel), score.Confidence, score.ComponentsUsed, components,
		score.MeetsMinimumThreshold, score.MeetsHighThreshold,
	)
	return err
}

// Snapshot is one stored confluence observation joined with its resolved
// forward return, if any.
type Snapshot struct {
	ID              int64
	Symbol          string
	ObservedAt      time.Time
	ConfluenceScore float64
	DirectionalBias float64
	Confidence      float64
	ForwardReturn   *float64
}

// UnresolvedSnapshots returns snapshots older than horizon that have no
// recorded outcome yet.
func (r *ConfluenceRepository) UnresolvedSnapshots(ctx context.Context, horizon time.Duration, limit int) ([]Snapshot, error) {
	_, span := r.tracer.Start(ctx, "confluence-repo.unresolved-snapshots")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, observed_at, confluence_score, directional_bias, confidence
		 FROM confluence_snapshots
		 WHERE forward_return IS NULL AND observed_at <= $1
		 ORDER BY observed_at ASC
		 LIMIT $2`,
		time.Now().UTC().Add(-horizon), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// ResolveOutcome records the realized forward return for a snapshot.
func (r *ConfluenceRepository) ResolveOutcome(ctx context.Context, id int64, forwardReturn float64) error {
	_, span := r.tracer.Start(ctx, "confluence-repo.resolve-outcome")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE confluence_snapshots SET forward_return = $2 WHERE id = $1`,
		id, forwardReturn,
	)
	return err
}

// TrainingSnapshots returns resolved snapshots for classifier training,
// oldest first.
func (r *ConfluenceRepository) TrainingSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	_, span := r.tracer.Start(ctx, "confluence-repo.training-snapshots")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, observed_at, confluence_score, directional_bias, confidence, forward_return
		 FROM confluence_snapshots
		 WHERE forward_return IS NOT NULL
		 ORDER BY observed_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Symbol, &s.ObservedAt, &s.ConfluenceScore, &s.DirectionalBias, &s.Confidence, &s.ForwardReturn); err != nil {
			return nil, err
		}
		s.ObservedAt = s.ObservedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSnapshots(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Snapshot, error) {
	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Symbol, &s.ObservedAt, &s.ConfluenceScore, &s.DirectionalBias, &s.Confidence); err != nil {
			return nil, err
		}
		s.ObservedAt = s.ObservedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
