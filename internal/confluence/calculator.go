package confluence

import (
	"context"
	"fmt"
	"sort"
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

const (
	componentTechnical   = "technical"
	componentSentiment   = "sentiment"
	componentOptionsFlow = "options_flow"
)

// SentimentSource supplies the aggregated sentiment component.
type SentimentSource interface {
	GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error)
}

// SnapshotStore persists confluence results for later outcome analysis.
type SnapshotStore interface {
	SaveConfluenceSnapshot(ctx context.Context, score *domain.ConfluenceScore) error
}

// Options overrides the configured component toggles for a single
// calculation. Overridden calls bypass the cache.
type Options struct {
	UseSentiment   *bool
	UseOptionsFlow *bool
}

func (o *Options) overridden() bool {
	return o != nil && (o.UseSentiment != nil || o.UseOptionsFlow != nil)
}

// Calculator combines the technical score with sentiment and options-flow
// components into a confluence score.
type Calculator struct {
	technical *TechnicalCalculator
	sentiment SentimentSource
	flow      provider.SourceSentimentProvider
	cfg       config.ConfluenceConfig
	cache     *cache.TTLCache[domain.ConfluenceScore]
	store     SnapshotStore
	recorder  *metrics.Recorder
	tracer    trace.Tracer
	log       zerolog.Logger
	now       func() time.Time
}

func NewCalculator(technical *TechnicalCalculator, sentiment SentimentSource, flow provider.SourceSentimentProvider, cfg config.ConfluenceConfig, store SnapshotStore, recorder *metrics.Recorder, tracer trace.Tracer, log zerolog.Logger) *Calculator {
	return &Calculator{
		technical: technical,
		sentiment: sentiment,
		flow:      flow,
		cfg:       cfg,
		cache:     cache.NewTTLCache[domain.ConfluenceScore](),
		store:     store,
		recorder:  recorder,
		tracer:    tracer,
		log:       log,
		now:       time.Now,
	}
}

// Calculate scores a symbol from its candle history. Returns (nil, nil) when
// the history is too short for a technical score.
func (c *Calculator) Calculate(ctx context.Context, symbol string, candles []domain.Candle, sentimentHours int, opts *Options) (*domain.ConfluenceScore, error) {
	ctx, span := c.tracer.Start(ctx, "confluence.calculate",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	start := c.now()
	defer func() {
		c.recorder.RecordDuration("calculate_confluence", c.now().Sub(start).Seconds())
	}()

	normalized, ok := domain.NormalizeSymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	symbol = normalized

	useSentiment := c.cfg.UseSentiment
	useOptionsFlow := c.cfg.UseOptionsFlow
	if opts != nil {
		if opts.UseSentiment != nil {
			useSentiment = *opts.UseSentiment
		}
		if opts.UseOptionsFlow != nil {
			useOptionsFlow = *opts.UseOptionsFlow
		}
	}

	cacheKey := fmt.Sprintf("%s:%d", symbol, sentimentHours)
	if !opts.overridden() {
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.recorder.RecordCacheLookup("confluence", true)
			return &cached, nil
		}
		c.recorder.RecordCacheLookup("confluence", false)
	}

	technical := c.technical.Calculate(candles)
	if technical == nil {
		return nil, nil
	}

	components := map[string]domain.ConfluenceComponent{
		componentTechnical: {Score: technical.OverallScore, Confidence: 1.0},
	}
	baseWeights := map[string]float64{
		componentTechnical: c.cfg.WeightTechnical,
	}
	breakdown := domain.ConfluenceBreakdown{Technical: technical}

	if useSentiment && c.sentiment != nil {
		agg, err := c.sentiment.GetAggregatedSentiment(ctx, symbol, sentimentHours, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment component failed")
		} else if agg != nil {
			components[componentSentiment] = domain.ConfluenceComponent{
				Score:      agg.UnifiedSentiment,
				Confidence: agg.Confidence,
			}
			baseWeights[componentSentiment] = c.cfg.WeightSentiment
			breakdown.Sentiment = agg
		}
	}

	if useOptionsFlow && c.flow != nil && c.flow.IsAvailable() {
		record, err := c.flow.GetSentiment(ctx, symbol, sentimentHours)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("options flow component failed")
		} else if record != nil {
			confidence := record.Confidence
			if confidence == 0 {
				confidence = 0.7
			}
			components[componentOptionsFlow] = domain.ConfluenceComponent{
				Score:      record.Score,
				Confidence: confidence,
			}
			baseWeights[componentOptionsFlow] = c.cfg.WeightOptionsFlow
			breakdown.OptionsFlow = record
		}
	}

	// Renormalize over the components actually present so missing
	// components never dilute the strength score.
	var weightSum float64
	for _, w := range baseWeights {
		weightSum += w
	}

	var strength, bias float64
	names := make([]string, 0, len(components))
	for name, comp := range components {
		w := baseWeights[name] / weightSum
		comp.Weight = w
		comp.Contribution = abs(comp.Score) * w
		components[name] = comp
		strength += comp.Contribution
		bias += comp.Score * w
		names = append(names, name)
	}
	sort.Strings(names)
	strength = clamp(strength, 0, 1)
	bias = clamp(bias, -1, 1)

	// Confidence follows the strength contributions: a component only
	// lends its confidence in proportion to how much signal it brought.
	var confSum, contribSum float64
	for _, comp := range components {
		confSum += comp.Confidence * comp.Contribution
		contribSum += comp.Contribution
	}
	confidence := 0.0
	if contribSum > 0 {
		confidence = confSum / contribSum
	}

	breakdown.Components = components
	level := domain.ConfluenceLevelFromScore(strength)
	result := &domain.ConfluenceScore{
		Symbol:                symbol,
		Timestamp:             c.now().UTC(),
		ConfluenceScore:       strength,
		DirectionalBias:       bias,
		ConfluenceLevel:       level,
		Breakdown:             breakdown,
		ComponentsUsed:        names,
		Confidence:            clamp(confidence, 0, 1),
		MeetsMinimumThreshold: strength >= c.cfg.MinThreshold,
		MeetsHighThreshold:    strength >= c.cfg.HighThreshold,
	}

	c.recorder.RecordConfluence(string(level))
	c.recorder.RecordConfluenceScore(symbol, strength)
	c.log.Info().
		Str("symbol", symbol).
		Float64("confluence", strength).
		Float64("bias", bias).
		Str("level", string(level)).
		Msg("confluence calculated")

	if !opts.overridden() {
		c.cache.Set(cacheKey, *result, time.Duration(c.cfg.CacheTTLSecs)*time.Second)
	}
	if c.store != nil {
		snapshot := *result
		go func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.store.SaveConfluenceSnapshot(saveCtx, &snapshot); err != nil {
				c.log.Warn().Err(err).Str("symbol", snapshot.Symbol).Msg("persist confluence snapshot failed")
			}
		}()
	}

	return result, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
