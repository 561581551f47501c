package registry

import (
	"context"
	"errors"
	"time"

	"tickerpulse/internal/repository"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// ModelVersion is one stored training artifact with its evaluation metrics.
type ModelVersion struct {
	ModelKey           string
	Version            int
	FeatureSpecVersion int
	TrainedFrom        time.Time
	TrainedTo          time.Time
	HyperparamsJSON    string
	MetricsJSON        string
	ArtifactFormat     string
	ArtifactBlob       []byte
	IsActive           bool
}

// Repository stores model artifacts in Postgres. One row per (model_key,
// version); at most one active row per model_key.
type Repository struct {
	pool   repository.PgxPool
	tracer trace.Tracer
}

func New(pool repository.PgxPool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) NextVersion(ctx context.Context, modelKey string) (int, error) {
	_, span := r.tracer.Start(ctx, "model-registry.next-version")
	defer span.End()

	var current int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM ml_model_versions WHERE model_key = $1`,
		modelKey,
	).Scan(&current)
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *Repository) InsertModelVersion(ctx context.Context, m ModelVersion) (*ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.insert-version")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO ml_model_versions
		     (model_key, version, feature_spec_version, trained_from, trained_to,
		      hyperparams, metrics, artifact_format, artifact, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ModelKey, m.Version, m.FeatureSpecVersion, m.TrainedFrom, m.TrainedTo,
		m.HyperparamsJSON, m.MetricsJSON, m.ArtifactFormat, m.ArtifactBlob, m.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetActiveModel returns the promoted version for a model key, or nil when no
// version has been promoted yet.
func (r *Repository) GetActiveModel(ctx context.Context, modelKey string) (*ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.get-active")
	defer span.End()

	var m ModelVersion
	err := r.pool.QueryRow(ctx,
		`SELECT model_key, version, feature_spec_version, trained_from, trained_to,
		        hyperparams, metrics, artifact_format, artifact, is_active
		 FROM ml_model_versions
		 WHERE model_key = $1 AND is_active
		 ORDER BY version DESC
		 LIMIT 1`,
		modelKey,
	).Scan(&m.ModelKey, &m.Version, &m.FeatureSpecVersion, &m.TrainedFrom, &m.TrainedTo,
		&m.HyperparamsJSON, &m.MetricsJSON, &m.ArtifactFormat, &m.ArtifactBlob, &m.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ActivateModel promotes one version and demotes every other version of the
// same model key.
func (r *Repository) ActivateModel(ctx context.Context, modelKey string, version int) error {
	_, span := r.tracer.Start(ctx, "model-registry.activate")
	defer span.End()

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE ml_model_versions SET is_active = FALSE WHERE model_key = $1`, modelKey)
	batch.Queue(`UPDATE ml_model_versions SET is_active = TRUE WHERE model_key = $1 AND version = $2`, modelKey, version)
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
