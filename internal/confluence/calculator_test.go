package confluence

import (
	"context"
	"errors"
	"math"
	"testing"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type fakeSentiment struct {
	result *domain.AggregatedSentiment
	err    error
	calls  int
}

func (f *fakeSentiment) GetAggregatedSentiment(context.Context, string, int, []string) (*domain.AggregatedSentiment, error) {
	f.calls++
	return f.result, f.err
}

type fakeFlow struct {
	record    *domain.SourceSentiment
	err       error
	available bool
}

func (f *fakeFlow) Name() string      { return domain.SourceOptionsFlow }
func (f *fakeFlow) IsAvailable() bool { return f.available }
func (f *fakeFlow) GetSentiment(context.Context, string, int) (*domain.SourceSentiment, error) {
	return f.record, f.err
}

func newTestCalculator(sentiment *fakeSentiment, flow *fakeFlow) *Calculator {
	recorder := metrics.NewWithRegistry(prometheus.NewRegistry())
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewCalculator(
		NewTechnicalCalculator(technicalConfig()),
		sentiment, flow, technicalConfig(), nil, recorder, tracer, zerolog.Nop(),
	)
}

// trendingCandles produces a series whose technical score is positive and
// well inside (0,1).
func trendingCandles(n int) []domain.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	return candleSeries(closes)
}

func TestConfluenceNilOnShortHistory(t *testing.T) {
	calc := newTestCalculator(&fakeSentiment{}, &fakeFlow{})
	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(15), 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for 15 bars, got %+v", got)
	}
}

func TestConfluenceTechnicalOnly(t *testing.T) {
	// Sentiment and options flow both absent: the technical weight
	// renormalizes to 1.0 and confluence equals |technical|.
	calc := newTestCalculator(&fakeSentiment{result: nil}, &fakeFlow{available: false})
	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(60), 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}
	technical := got.Breakdown.Technical.OverallScore
	if math.Abs(got.ConfluenceScore-math.Abs(technical)) > 1e-9 {
		t.Fatalf("confluence = %v, want |technical| = %v", got.ConfluenceScore, math.Abs(technical))
	}
	if math.Abs(got.DirectionalBias-technical) > 1e-9 {
		t.Fatalf("bias = %v, want technical = %v", got.DirectionalBias, technical)
	}
	if len(got.ComponentsUsed) != 1 || got.ComponentsUsed[0] != componentTechnical {
		t.Fatalf("components = %v, want only technical", got.ComponentsUsed)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("technical-only confidence = %v, want 1.0", got.Confidence)
	}
}

func TestConfluenceRenormalizedWeightsSumToOne(t *testing.T) {
	sentiment := &fakeSentiment{result: &domain.AggregatedSentiment{
		UnifiedSentiment: 0.5, Confidence: 0.8, SourceCount: 3,
	}}
	flow := &fakeFlow{available: true, record: &domain.SourceSentiment{
		Source: domain.SourceOptionsFlow, Score: 0.3, Confidence: 0.6,
	}}
	calc := newTestCalculator(sentiment, flow)

	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(60), 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var weightSum float64
	for _, comp := range got.Breakdown.Components {
		weightSum += comp.Weight
	}
	if math.Abs(weightSum-1.0) > 1e-9 {
		t.Fatalf("renormalized weights sum to %v, want 1.0", weightSum)
	}
	if len(got.ComponentsUsed) != 3 {
		t.Fatalf("components = %v, want all three", got.ComponentsUsed)
	}
}

func TestConfluenceStrengthVersusBias(t *testing.T) {
	// A strongly bearish sentiment against a bullish technical: strength
	// uses |score| so both add, bias is signed so they cancel.
	sentiment := &fakeSentiment{result: &domain.AggregatedSentiment{
		UnifiedSentiment: -0.9, Confidence: 0.8, SourceCount: 4,
	}}
	calc := newTestCalculator(sentiment, &fakeFlow{available: false})

	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(60), 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ConfluenceScore <= math.Abs(got.DirectionalBias) {
		t.Fatalf("opposing components: strength %v must exceed |bias| %v",
			got.ConfluenceScore, math.Abs(got.DirectionalBias))
	}
	if got.ConfluenceScore < 0 || got.ConfluenceScore > 1 {
		t.Fatalf("confluence out of range: %v", got.ConfluenceScore)
	}
	if got.DirectionalBias < -1 || got.DirectionalBias > 1 {
		t.Fatalf("bias out of range: %v", got.DirectionalBias)
	}
}

func TestConfluenceSentimentFailureDegradesGracefully(t *testing.T) {
	sentiment := &fakeSentiment{err: errors.New("all providers down")}
	calc := newTestCalculator(sentiment, &fakeFlow{available: false})

	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(60), 24, nil)
	if err != nil {
		t.Fatalf("component failure must not fail the calculation: %v", err)
	}
	if got == nil || len(got.ComponentsUsed) != 1 {
		t.Fatalf("expected technical-only result, got %+v", got)
	}
}

func TestConfluenceThresholds(t *testing.T) {
	tests := []struct {
		score     float64
		level     domain.ConfluenceLevel
		meetsMin  bool
		meetsHigh bool
	}{
		{0.2, domain.ConfluenceVeryLow, false, false},
		{0.3, domain.ConfluenceLow, false, false},
		{0.5, domain.ConfluenceModerate, false, false},
		{0.6, domain.ConfluenceModerate, true, false},
		{0.7, domain.ConfluenceHigh, true, false},
		{0.85, domain.ConfluenceVeryHigh, true, true},
	}
	for _, tt := range tests {
		if got := domain.ConfluenceLevelFromScore(tt.score); got != tt.level {
			t.Fatalf("level for %v = %s, want %s", tt.score, got, tt.level)
		}
		cfg := technicalConfig()
		if meets := tt.score >= cfg.MinThreshold; meets != tt.meetsMin {
			t.Fatalf("min threshold for %v = %v, want %v", tt.score, meets, tt.meetsMin)
		}
		if meets := tt.score >= cfg.HighThreshold; meets != tt.meetsHigh {
			t.Fatalf("high threshold for %v = %v, want %v", tt.score, meets, tt.meetsHigh)
		}
	}
}

func TestConfluenceCaching(t *testing.T) {
	sentiment := &fakeSentiment{result: &domain.AggregatedSentiment{
		UnifiedSentiment: 0.4, Confidence: 0.7, SourceCount: 2,
	}}
	calc := newTestCalculator(sentiment, &fakeFlow{available: false})
	candles := trendingCandles(60)

	first, err := calc.Calculate(context.Background(), "AAPL", candles, 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := calc.Calculate(context.Background(), "AAPL", candles, 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sentiment.calls != 1 {
		t.Fatalf("sentiment fetched %d times, want 1 (second call cached)", sentiment.calls)
	}
	if first.ConfluenceScore != second.ConfluenceScore {
		t.Fatal("cached result differs")
	}
}

func TestConfluenceToggleOverrideBypassesCache(t *testing.T) {
	sentiment := &fakeSentiment{result: &domain.AggregatedSentiment{
		UnifiedSentiment: 0.4, Confidence: 0.7, SourceCount: 2,
	}}
	calc := newTestCalculator(sentiment, &fakeFlow{available: false})
	candles := trendingCandles(60)

	if _, err := calc.Calculate(context.Background(), "AAPL", candles, 24, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	off := false
	got, err := calc.Calculate(context.Background(), "AAPL", candles, 24, &Options{UseSentiment: &off})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.ComponentsUsed) != 1 {
		t.Fatalf("override must disable sentiment, got components %v", got.ComponentsUsed)
	}

	// The overridden result must not have poisoned the cache.
	cached, err := calc.Calculate(context.Background(), "AAPL", candles, 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cached.ComponentsUsed) != 2 {
		t.Fatalf("cache poisoned by override: components %v", cached.ComponentsUsed)
	}
}

func TestConfluenceOptionsFlowDefaultConfidence(t *testing.T) {
	flow := &fakeFlow{available: true, record: &domain.SourceSentiment{
		Source: domain.SourceOptionsFlow, Score: 0.5,
	}}
	calc := newTestCalculator(&fakeSentiment{}, flow)

	got, err := calc.Calculate(context.Background(), "AAPL", trendingCandles(60), 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	comp, ok := got.Breakdown.Components[componentOptionsFlow]
	if !ok {
		t.Fatal("expected options flow component")
	}
	if comp.Confidence != 0.7 {
		t.Fatalf("flow confidence = %v, want default 0.7 when unreported", comp.Confidence)
	}
}

func TestConfluenceRejectsInvalidSymbol(t *testing.T) {
	calc := newTestCalculator(&fakeSentiment{}, &fakeFlow{})
	if _, err := calc.Calculate(context.Background(), "....", trendingCandles(60), 24, nil); err == nil {
		t.Fatal("expected error for invalid symbol")
	}
}
