package repository

import (
	"context"
	"encoding/json"
	"time"

	"tickerpulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SentimentRepository persists per-source and aggregated sentiment records.
type SentimentRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSentimentRepository(pool PgxPool, tracer trace.Tracer) *SentimentRepository {
	return &SentimentRepository{pool: pool, tracer: tracer}
}

func (r *SentimentRepository) SaveSourceSentiment(ctx context.Context, s *domain.SourceSentiment) error {
	_, span := r.tracer.Start(ctx, "sentiment-repo.save-source")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO source_sentiments
		     (source, symbol, score, confidence, mentions, observed_at, level, source_weight, volume_trend)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (source, symbol, observed_at) DO UPDATE SET
		     score = EXCLUDED.score,
		     confidence = EXCLUDED.confidence,
		     mentions = EXCLUDED.mentions,
		     level = EXCLUDED.level,
		     source_weight = EXCLUDED.source_weight,
		     volume_trend = EXCLUDED.volume_trend`,
		s.Source, s.Symbol, s.Score, s.Confidence, s.Mentions, s.Timestamp, string(s.Level), s.SourceWeight, string(s.VolumeTrend),
	)
	return err
}

func (r *SentimentRepository) SaveAggregatedSentiment(ctx context.Context, agg *domain.AggregatedSentiment) error {
	_, span := r.tracer.Start(ctx, "sentiment-repo.save-aggregated")
	defer span.End()

	breakdown, err := json.Marshal(agg.SourceBreakdown)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO aggregated_sentiments
		     (symbol, observed_at, unified_sentiment, confidence, level, source_count,
		      total_mentions, providers_used, divergence_detected, divergence_score,
		      volume_trend, source_breakdown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		agg.Symbol, agg.Timestamp, agg.UnifiedSentiment, agg.Confidence, string(agg.SentimentLevel),
		agg.SourceCount, agg.TotalMentions, agg.ProvidersUsed, agg.DivergenceDetected,
		agg.DivergenceScore, string(agg.VolumeTrend), breakdown,
	)
	return err
}

// RecentAggregated returns the latest stored aggregates for a symbol, newest
// first.
func (r *SentimentRepository) RecentAggregated(ctx context.Context, symbol string, limit int) ([]domain.AggregatedSentiment, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.recent-aggregated")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, observed_at, unified_sentiment, confidence, level, source_count,
		        total_mentions, providers_used, divergence_detected, divergence_score,
		        volume_trend, source_breakdown
		 FROM aggregated_sentiments
		 WHERE symbol = $1
		 ORDER BY observed_at DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AggregatedSentiment
	for rows.Next() {
		var agg domain.AggregatedSentiment
		var level, trend string
		var ts time.Time
		var breakdown []byte
		if err := rows.Scan(&agg.Symbol, &ts, &agg.UnifiedSentiment, &agg.Confidence, &level,
			&agg.SourceCount, &agg.TotalMentions, &agg.ProvidersUsed, &agg.DivergenceDetected,
			&agg.DivergenceScore, &trend, &breakdown); err != nil {
			return nil, err
		}
		agg.Timestamp = ts.UTC()
		agg.SentimentLevel = domain.SentimentLevel(level)
		agg.VolumeTrend = domain.VolumeTrend(trend)
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &agg.SourceBreakdown); err != nil {
				return nil, err
			}
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// SourceHistory returns stored per-source records for a symbol within the
// trailing window, newest first.
func (r *SentimentRepository) SourceHistory(ctx context.Context, symbol string, since time.Time) ([]domain.SourceSentiment, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.source-history")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT source, symbol, score, confidence, mentions, observed_at, level, source_weight, volume_trend
		 FROM source_sentiments
		 WHERE symbol = $1 AND observed_at >= $2
		 ORDER BY observed_at DESC`,
		symbol, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SourceSentiment
	for rows.Next() {
		var s domain.SourceSentiment
		var level, trend string
		var ts time.Time
		if err := rows.Scan(&s.Source, &s.Symbol, &s.Score, &s.Confidence, &s.Mentions, &ts, &level, &s.SourceWeight, &trend); err != nil {
			return nil, err
		}
		s.Timestamp = ts.UTC()
		s.Level = domain.SentimentLevel(level)
		s.VolumeTrend = domain.VolumeTrend(trend)
		out = append(out, s)
	}
	return out, rows.Err()
}
