package job

import (
	"context"
	"time"

	"tickerpulse/internal/confluence"
	"tickerpulse/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ConfluenceScorer scores one symbol end to end.
type ConfluenceScorer interface {
	Score(ctx context.Context, symbol string, hours int, opts *confluence.Options) (*domain.ConfluenceScore, error)
}

// Notifier pushes a high-confluence signal to subscribers. Implementations
// must tolerate being called from the scan goroutine.
type Notifier interface {
	NotifySignal(score *domain.ConfluenceScore)
}

// ScanJob periodically scores the watchlist and pushes alerts for symbols
// that clear the high-confluence threshold.
type ScanJob struct {
	scorer    ConfluenceScorer
	notifier  Notifier
	watchlist []string
	hours     int
	interval  time.Duration
	tracer    trace.Tracer
	log       zerolog.Logger
}

func NewScanJob(scorer ConfluenceScorer, notifier Notifier, watchlist []string, hours, intervalSecs int, tracer trace.Tracer, log zerolog.Logger) *ScanJob {
	if hours <= 0 {
		hours = 24
	}
	if intervalSecs <= 0 {
		intervalSecs = 900
	}
	return &ScanJob{
		scorer:    scorer,
		notifier:  notifier,
		watchlist: watchlist,
		hours:     hours,
		interval:  time.Duration(intervalSecs) * time.Second,
		tracer:    tracer,
		log:       log,
	}
}

// Start runs scan cycles until ctx is cancelled. The first cycle runs
// immediately.
func (j *ScanJob) Start(ctx context.Context) {
	j.log.Info().Int("symbols", len(j.watchlist)).Dur("interval", j.interval).Msg("scan job starting")

	if _, err := j.RunScan(ctx); err != nil {
		j.log.Warn().Err(err).Msg("initial scan failed")
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("scan job stopped")
			return
		case <-ticker.C:
			if _, err := j.RunScan(ctx); err != nil {
				j.log.Warn().Err(err).Msg("scan cycle failed")
			}
		}
	}
}

// RunScan scores every watchlist symbol once and returns the results that
// cleared the minimum threshold. Per-symbol failures are logged and skipped
// so one bad symbol never aborts the cycle.
func (j *ScanJob) RunScan(ctx context.Context) ([]domain.ConfluenceScore, error) {
	ctx, span := j.tracer.Start(ctx, "scan-job.run-scan")
	defer span.End()

	var signals []domain.ConfluenceScore
	for _, symbol := range j.watchlist {
		if err := ctx.Err(); err != nil {
			return signals, err
		}

		score, err := j.scorer.Score(ctx, symbol, j.hours, nil)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("scan score failed")
			continue
		}
		if score == nil {
			continue
		}
		if score.MeetsMinimumThreshold {
			signals = append(signals, *score)
		}
		if score.MeetsHighThreshold && j.notifier != nil {
			j.notifier.NotifySignal(score)
		}
	}

	j.log.Info().Int("scanned", len(j.watchlist)).Int("signals", len(signals)).Msg("scan cycle complete")
	return signals, nil
}
