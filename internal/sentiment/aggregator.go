package sentiment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tickerpulse/internal/cache"
	"tickerpulse/internal/config"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/metrics"
	"tickerpulse/internal/provider"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store persists sentiment records. Persistence is best-effort and never
// blocks a response.
type Store interface {
	SaveSourceSentiment(ctx context.Context, s *domain.SourceSentiment) error
	SaveAggregatedSentiment(ctx context.Context, agg *domain.AggregatedSentiment) error
}

// Aggregator combines per-source sentiment into a unified score with source
// weighting, time decay and confidence filtering.
type Aggregator struct {
	registry    *provider.Registry
	cfg         config.SentimentConfig
	sourceCache cache.SourceCache
	aggCache    *cache.TTLCache[domain.AggregatedSentiment]
	store       Store
	recorder    *metrics.Recorder
	tracer      trace.Tracer
	log         zerolog.Logger
	now         func() time.Time
}

func NewAggregator(registry *provider.Registry, cfg config.SentimentConfig, sourceCache cache.SourceCache, store Store, recorder *metrics.Recorder, tracer trace.Tracer, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry:    registry,
		cfg:         cfg,
		sourceCache: sourceCache,
		aggCache:    cache.NewTTLCache[domain.AggregatedSentiment](),
		store:       store,
		recorder:    recorder,
		tracer:      tracer,
		log:         log,
		now:         time.Now,
	}
}

// Sources returns the names of all registered providers.
func (a *Aggregator) Sources() []string {
	return a.registry.Names()
}

// GetSourceSentiments fetches every requested source individually, without
// aggregation. Used by the per-source inspection endpoint.
func (a *Aggregator) GetSourceSentiments(ctx context.Context, symbol string, hours int) map[string]*domain.SourceSentiment {
	if normalized, ok := domain.NormalizeSymbol(symbol); ok {
		symbol = normalized
	}
	if hours <= 0 {
		hours = a.cfg.DefaultHours
	}
	out := make(map[string]*domain.SourceSentiment)
	for _, p := range a.registry.All() {
		record, err := a.fetchSource(ctx, p, symbol, hours)
		if err != nil {
			a.log.Warn().Err(err).Str("source", p.Name()).Str("symbol", symbol).Msg("source fetch failed")
			continue
		}
		out[p.Name()] = record
	}
	return out
}

// GetAggregatedSentiment aggregates sentiment for symbol over the trailing
// window. sources narrows the candidate set; nil means all registered
// providers. Returns (nil, nil) when fewer sources than the configured
// minimum produced usable data.
func (a *Aggregator) GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error) {
	ctx, span := a.tracer.Start(ctx, "sentiment.aggregate",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("hours", hours)))
	defer span.End()

	start := a.now()
	defer func() {
		a.recorder.RecordDuration("aggregate_sentiment", a.now().Sub(start).Seconds())
	}()

	normalized, ok := domain.NormalizeSymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	symbol = normalized
	if hours <= 0 {
		hours = a.cfg.DefaultHours
	}

	cacheKey := aggregateCacheKey(symbol, hours, sources)
	if cached, ok := a.aggCache.Get(cacheKey); ok {
		a.recorder.RecordCacheLookup("aggregate", true)
		return &cached, nil
	}
	a.recorder.RecordCacheLookup("aggregate", false)

	candidates := a.candidates(sources)

	now := a.now().UTC()
	halfLife := time.Duration(a.cfg.DecayHalfLifeHours * float64(time.Hour))

	var acc []*domain.SourceSentiment
	for _, p := range candidates {
		record, err := a.fetchSource(ctx, p, symbol, hours)
		if err != nil {
			a.recorder.RecordSourceResult(p.Name(), "error")
			a.log.Warn().Err(err).Str("source", p.Name()).Str("symbol", symbol).Msg("source fetch failed")
			continue
		}
		if record == nil {
			a.recorder.RecordSourceResult(p.Name(), "no_data")
			continue
		}
		if record.Confidence < a.cfg.MinConfidence {
			a.recorder.RecordSourceResult(p.Name(), "skipped")
			continue
		}
		base := a.cfg.Weights[record.Source]
		effWeight := EffectiveWeight(base, now.Sub(record.Timestamp), halfLife)
		if effWeight == 0 {
			a.recorder.RecordSourceResult(p.Name(), "skipped")
			continue
		}
		record.SourceWeight = effWeight
		a.recorder.RecordSourceResult(p.Name(), "success")
		acc = append(acc, record)
	}

	if len(acc) < a.cfg.MinProviders {
		a.recorder.RecordAggregation("insufficient_sources")
		return nil, nil
	}

	var weightedSum, weightTotal, confSum float64
	totalMentions := 0
	for _, r := range acc {
		w := r.SourceWeight * r.Confidence
		weightedSum += r.Score * w
		weightTotal += w
		confSum += r.Confidence
		totalMentions += r.Mentions
	}
	unified := clamp(weightedSum/weightTotal, -1, 1)
	confidence := confSum / float64(len(acc))

	divergence := divergenceScore(scoresOf(acc))
	divergenceDetected := divergence > a.cfg.DivergenceThreshold
	if divergenceDetected {
		a.recorder.RecordDivergence()
	}

	breakdown := make(map[string]float64, len(acc))
	sourcesOut := make(map[string]domain.SourceSentiment, len(acc))
	providersUsed := make([]string, 0, len(acc))
	for _, r := range acc {
		w := r.SourceWeight * r.Confidence
		breakdown[r.Source] = w / weightTotal * 100
		sourcesOut[r.Source] = *r
		providersUsed = append(providersUsed, r.Source)
	}
	sort.Strings(providersUsed)

	result := &domain.AggregatedSentiment{
		Symbol:             symbol,
		Timestamp:          now,
		UnifiedSentiment:   unified,
		Confidence:         clamp(confidence, 0, 1),
		SentimentLevel:     domain.LevelFromScore(unified),
		SourceCount:        len(acc),
		TotalMentions:      totalMentions,
		ProvidersUsed:      providersUsed,
		DivergenceDetected: divergenceDetected,
		DivergenceScore:    divergence,
		VolumeTrend:        majorityVolumeTrend(acc),
		SourceBreakdown:    breakdown,
		Sources:            sourcesOut,
	}

	a.aggCache.Set(cacheKey, *result, time.Duration(a.cfg.CacheTTLSecs)*time.Second)
	a.recorder.RecordAggregation("ok")
	a.recorder.RecordUnifiedSentiment(symbol, unified)
	a.log.Info().
		Str("symbol", symbol).
		Float64("unified", unified).
		Int("sources", len(acc)).
		Float64("divergence", divergence).
		Msg("sentiment aggregated")

	if a.cfg.PersistToDB && a.store != nil {
		a.persistAsync(result)
	}

	return result, nil
}

// fetchSource serves one provider call through the shared source cache with
// a bounded per-source timeout.
func (a *Aggregator) fetchSource(ctx context.Context, p provider.SourceSentimentProvider, symbol string, hours int) (*domain.SourceSentiment, error) {
	key := fmt.Sprintf("%s:%s:%d", p.Name(), symbol, hours)
	if cached, ok := a.sourceCache.GetSource(ctx, key); ok {
		a.recorder.RecordCacheLookup("source", true)
		return cached, nil
	}
	a.recorder.RecordCacheLookup("source", false)

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.ProviderTimeoutSecs)*time.Second)
	defer cancel()

	record, err := p.GetSentiment(fetchCtx, symbol, hours)
	if err != nil {
		return nil, err
	}
	if record != nil {
		a.sourceCache.SetSource(ctx, key, record, time.Duration(a.cfg.ProviderCacheSecs)*time.Second)
		if a.cfg.PersistToDB && a.store != nil {
			go func(rec domain.SourceSentiment) {
				saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.store.SaveSourceSentiment(saveCtx, &rec); err != nil {
					a.log.Warn().Err(err).Str("source", rec.Source).Msg("persist source sentiment failed")
				}
			}(*record)
		}
	}
	return record, nil
}

func (a *Aggregator) candidates(sources []string) []provider.SourceSentimentProvider {
	if len(sources) == 0 {
		return a.registry.All()
	}
	var out []provider.SourceSentimentProvider
	for _, name := range sources {
		if p, ok := a.registry.Get(strings.ToLower(strings.TrimSpace(name))); ok {
			out = append(out, p)
		}
	}
	return out
}

func (a *Aggregator) persistAsync(result *domain.AggregatedSentiment) {
	agg := *result
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.store.SaveAggregatedSentiment(ctx, &agg); err != nil {
			a.log.Warn().Err(err).Str("symbol", agg.Symbol).Msg("persist aggregated sentiment failed")
		}
	}()
}

// divergenceScore is the population variance of the accepted scores, clamped
// to [0,1]. Fewer than two sources cannot diverge.
func divergenceScore(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	return clamp(variance, 0, 1)
}

// majorityVolumeTrend is a mention-count-weighted vote; ties resolve to
// stable.
func majorityVolumeTrend(records []*domain.SourceSentiment) domain.VolumeTrend {
	votes := make(map[domain.VolumeTrend]int)
	for _, r := range records {
		if r.VolumeTrend == "" {
			continue
		}
		weight := r.Mentions
		if weight < 1 {
			weight = 1
		}
		votes[r.VolumeTrend] += weight
	}
	up, down, stable := votes[domain.VolumeTrendUp], votes[domain.VolumeTrendDown], votes[domain.VolumeTrendStable]
	switch {
	case up > down && up > stable:
		return domain.VolumeTrendUp
	case down > up && down > stable:
		return domain.VolumeTrendDown
	default:
		return domain.VolumeTrendStable
	}
}

func aggregateCacheKey(symbol string, hours int, sources []string) string {
	if len(sources) == 0 {
		return fmt.Sprintf("%s:%d:all", symbol, hours)
	}
	sorted := make([]string, len(sources))
	copy(sorted, sources)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:%d:%s", symbol, hours, strings.Join(sorted, ","))
}

func scoresOf(records []*domain.SourceSentiment) []float64 {
	scores := make([]float64, 0, len(records))
	for _, r := range records {
		scores = append(scores, r.Score)
	}
	return scores
}
