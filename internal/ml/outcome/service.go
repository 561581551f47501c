package outcome

import (
	"context"
	"time"

	"tickerpulse/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotStore lists unresolved snapshots and records their outcomes.
type SnapshotStore interface {
	UnresolvedSnapshots(ctx context.Context, horizon time.Duration, limit int) ([]repository.Snapshot, error)
	ResolveOutcome(ctx context.Context, id int64, forwardReturn float64) error
}

// PriceSource answers what a symbol traded at around a point in time.
type PriceSource interface {
	CloseOnOrAfter(ctx context.Context, symbol string, ts time.Time) (float64, bool, error)
}

// Resolver labels stored snapshots with their realized forward return once
// the horizon has elapsed. Labels feed the direction classifiers.
type Resolver struct {
	store   SnapshotStore
	prices  PriceSource
	horizon time.Duration
	tracer  trace.Tracer
	log     zerolog.Logger
}

func NewResolver(store SnapshotStore, prices PriceSource, horizon time.Duration, tracer trace.Tracer, log zerolog.Logger) *Resolver {
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	return &Resolver{store: store, prices: prices, horizon: horizon, tracer: tracer, log: log}
}

// ResolveOutcomes settles up to limit snapshots and returns how many were
// resolved. A symbol with no reference price yet is left for the next pass.
func (r *Resolver) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	ctx, span := r.tracer.Start(ctx, "outcome-resolver.resolve")
	defer span.End()

	pending, err := r.store.UnresolvedSnapshots(ctx, r.horizon, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, snap := range pending {
		entry, ok, err := r.prices.CloseOnOrAfter(ctx, snap.Symbol, snap.ObservedAt)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("entry price lookup failed")
			continue
		}
		if !ok || entry == 0 {
			continue
		}
		exit, ok, err := r.prices.CloseOnOrAfter(ctx, snap.Symbol, snap.ObservedAt.Add(r.horizon))
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("exit price lookup failed")
			continue
		}
		if !ok {
			continue
		}

		forwardReturn := exit/entry - 1
		if err := r.store.ResolveOutcome(ctx, snap.ID, forwardReturn); err != nil {
			r.log.Warn().Err(err).Int64("snapshot", snap.ID).Msg("outcome write failed")
			continue
		}
		resolved++
	}
	return resolved, nil
}
