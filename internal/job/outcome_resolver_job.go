package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// OutcomeResolver settles forward returns for stored confluence snapshots.
type OutcomeResolver interface {
	ResolveOutcomes(ctx context.Context, limit int) (int, error)
}

// OutcomeResolverJob drains unresolved snapshots on a fixed interval.
type OutcomeResolverJob struct {
	resolver     OutcomeResolver
	pollInterval time.Duration
	batchSize    int
	tracer       trace.Tracer
	log          zerolog.Logger
}

func NewOutcomeResolverJob(resolver OutcomeResolver, pollInterval time.Duration, batchSize int, tracer trace.Tracer, log zerolog.Logger) *OutcomeResolverJob {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &OutcomeResolverJob{
		resolver:     resolver,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		tracer:       tracer,
		log:          log,
	}
}

func (j *OutcomeResolverJob) Start(ctx context.Context) {
	if j.resolver == nil {
		j.log.Info().Msg("outcome resolver job disabled")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *OutcomeResolverJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "outcome-resolver-job.run-once")
	defer span.End()

	resolved, err := j.resolver.ResolveOutcomes(ctx, j.batchSize)
	if err != nil {
		j.log.Warn().Err(err).Msg("outcome resolution failed")
		return
	}
	if resolved > 0 {
		j.log.Info().Int("resolved", resolved).Msg("snapshot outcomes settled")
	}
}
