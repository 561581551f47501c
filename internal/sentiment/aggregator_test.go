package sentiment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tickerpulse/internal/cache"
	"tickerpulse/internal/config"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/metrics"
	"tickerpulse/internal/provider"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type fakeSource struct {
	name   string
	record *domain.SourceSentiment
	err    error
	calls  int
}

func (f *fakeSource) Name() string      { return f.name }
func (f *fakeSource) IsAvailable() bool { return true }
func (f *fakeSource) GetSentiment(context.Context, string, int) (*domain.SourceSentiment, error) {
	f.calls++
	return f.record, f.err
}

func testConfig() config.SentimentConfig {
	return config.SentimentConfig{
		Weights: config.SourceWeights{
			domain.SourceTwitter: 1.0,
			domain.SourceReddit:  1.0,
			domain.SourceNews:    1.2,
		},
		MinConfidence:       0.3,
		DivergenceThreshold: 0.5,
		DecayHalfLifeHours:  6,
		MinProviders:        1,
		DefaultHours:        24,
		CacheTTLSecs:        300,
		ProviderCacheSecs:   900,
		ProviderTimeoutSecs: 15,
		ProviderMaxRetries:  3,
	}
}

func newTestAggregator(cfg config.SentimentConfig, now time.Time, providers ...provider.SourceSentimentProvider) *Aggregator {
	registry := provider.NewRegistry(zerolog.Nop(), providers...)
	recorder := metrics.NewWithRegistry(prometheus.NewRegistry())
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	agg := NewAggregator(registry, cfg, cache.NewMemorySourceCache(), nil, recorder, tracer, zerolog.Nop())
	agg.now = func() time.Time { return now }
	return agg
}

func TestAggregateTwoSources(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	twitter := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Symbol: "AAPL", Score: 0.8, Confidence: 0.9, Mentions: 100, Timestamp: now,
	}}
	reddit := &fakeSource{name: domain.SourceReddit, record: &domain.SourceSentiment{
		Source: domain.SourceReddit, Symbol: "AAPL", Score: -0.2, Confidence: 0.5, Mentions: 40, Timestamp: now,
	}}

	agg := newTestAggregator(testConfig(), now, twitter, reddit)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}

	// Equal base weights, zero age: unified =
	// (0.8*1*0.9 + (-0.2)*1*0.5) / (1*0.9 + 1*0.5) = 0.62/1.4.
	want := (0.8*0.9 - 0.2*0.5) / (0.9 + 0.5)
	if math.Abs(got.UnifiedSentiment-want) > 1e-9 {
		t.Fatalf("unified = %v, want %v", got.UnifiedSentiment, want)
	}
	if math.Abs(got.UnifiedSentiment-0.443) > 0.001 {
		t.Fatalf("unified = %v, want ~0.443", got.UnifiedSentiment)
	}
	if got.SourceCount != 2 {
		t.Fatalf("source count = %d, want 2", got.SourceCount)
	}
	if got.DivergenceScore <= 0 {
		t.Fatalf("divergence = %v, want > 0 for disagreeing sources", got.DivergenceScore)
	}
	if got.TotalMentions != 140 {
		t.Fatalf("total mentions = %d, want 140", got.TotalMentions)
	}
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Fatalf("confidence = %v, want mean 0.7", got.Confidence)
	}

	var pctSum float64
	for _, pct := range got.SourceBreakdown {
		pctSum += pct
	}
	if math.Abs(pctSum-100) > 1e-6 {
		t.Fatalf("breakdown percentages sum to %v, want 100", pctSum)
	}
}

func TestAggregateFiltersLowConfidence(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	strong := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 0.5, Confidence: 0.8, Mentions: 10, Timestamp: now,
	}}
	weak := &fakeSource{name: domain.SourceReddit, record: &domain.SourceSentiment{
		Source: domain.SourceReddit, Score: -1.0, Confidence: 0.1, Mentions: 10, Timestamp: now,
	}}

	agg := newTestAggregator(testConfig(), now, strong, weak)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceCount != 1 {
		t.Fatalf("source count = %d, want low-confidence source filtered", got.SourceCount)
	}
	if _, ok := got.Sources[domain.SourceReddit]; ok {
		t.Fatal("filtered source must not appear in the result")
	}
}

func TestAggregateNullWhenNoSources(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	empty := &fakeSource{name: domain.SourceTwitter, record: nil}
	failing := &fakeSource{name: domain.SourceReddit, err: errors.New("rate limited")}

	agg := newTestAggregator(testConfig(), now, empty, failing)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("provider failures must not abort aggregation: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result with zero accepted sources, got %+v", got)
	}
}

func TestAggregateOneFailingSourceDoesNotAbort(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	good := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 0.4, Confidence: 0.6, Mentions: 5, Timestamp: now,
	}}
	failing := &fakeSource{name: domain.SourceReddit, err: errors.New("boom")}

	agg := newTestAggregator(testConfig(), now, good, failing)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.SourceCount != 1 {
		t.Fatalf("expected result from the surviving source, got %+v", got)
	}
}

func TestAggregateTimeDecayDownweightsStaleSource(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	fresh := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 1.0, Confidence: 0.5, Mentions: 5, Timestamp: now,
	}}
	stale := &fakeSource{name: domain.SourceReddit, record: &domain.SourceSentiment{
		Source: domain.SourceReddit, Score: -1.0, Confidence: 0.5, Mentions: 5, Timestamp: now.Add(-6 * time.Hour),
	}}

	agg := newTestAggregator(testConfig(), now, fresh, stale)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Fresh weight 1.0 vs stale weight 0.5: unified = (1 - 0.5)/1.5.
	want := (1.0 - 0.5) / 1.5
	if math.Abs(got.UnifiedSentiment-want) > 1e-9 {
		t.Fatalf("unified = %v, want %v", got.UnifiedSentiment, want)
	}
}

func TestAggregateDropsSourcesBeyondDecayWindow(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	ancient := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 1.0, Confidence: 0.9, Mentions: 5, Timestamp: now.Add(-19 * time.Hour),
	}}

	agg := newTestAggregator(testConfig(), now, ancient)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("source older than 3 half-lives must be dropped, got %+v", got)
	}
}

func TestAggregateCachesResult(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 0.4, Confidence: 0.6, Mentions: 5, Timestamp: now,
	}}

	agg := newTestAggregator(testConfig(), now, src)
	first, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("provider called %d times, want 1 (second call cached)", src.calls)
	}
	if first.UnifiedSentiment != second.UnifiedSentiment {
		t.Fatalf("cached result differs: %v vs %v", first.UnifiedSentiment, second.UnifiedSentiment)
	}
}

func TestAggregateSourceFilter(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	twitter := &fakeSource{name: domain.SourceTwitter, record: &domain.SourceSentiment{
		Source: domain.SourceTwitter, Score: 0.8, Confidence: 0.9, Mentions: 5, Timestamp: now,
	}}
	reddit := &fakeSource{name: domain.SourceReddit, record: &domain.SourceSentiment{
		Source: domain.SourceReddit, Score: -0.8, Confidence: 0.9, Mentions: 5, Timestamp: now,
	}}

	agg := newTestAggregator(testConfig(), now, twitter, reddit)
	got, err := agg.GetAggregatedSentiment(context.Background(), "AAPL", 24, []string{domain.SourceTwitter})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceCount != 1 || got.ProvidersUsed[0] != domain.SourceTwitter {
		t.Fatalf("expected only twitter, got %+v", got.ProvidersUsed)
	}
	if reddit.calls != 0 {
		t.Fatal("excluded source must not be called")
	}
}

func TestAggregateRejectsInvalidSymbol(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	agg := newTestAggregator(testConfig(), now)
	if _, err := agg.GetAggregatedSentiment(context.Background(), "not a symbol", 24, nil); err == nil {
		t.Fatal("expected error for invalid symbol")
	}
}

func TestDivergenceScore(t *testing.T) {
	if got := divergenceScore([]float64{0.5}); got != 0 {
		t.Fatalf("single source divergence = %v, want 0", got)
	}
	if got := divergenceScore([]float64{0.5, 0.5, 0.5}); got != 0 {
		t.Fatalf("agreeing sources divergence = %v, want 0", got)
	}
	got := divergenceScore([]float64{1, -1})
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("max disagreement divergence = %v, want 1.0", got)
	}
	if lo, hi := divergenceScore([]float64{0.1, 0.2}), divergenceScore([]float64{0.9, -0.9}); lo >= hi {
		t.Fatalf("divergence must grow with disagreement: %v vs %v", lo, hi)
	}
}

func TestMajorityVolumeTrend(t *testing.T) {
	records := []*domain.SourceSentiment{
		{VolumeTrend: domain.VolumeTrendUp, Mentions: 10},
		{VolumeTrend: domain.VolumeTrendDown, Mentions: 100},
		{VolumeTrend: domain.VolumeTrendUp, Mentions: 20},
	}
	if got := majorityVolumeTrend(records); got != domain.VolumeTrendDown {
		t.Fatalf("trend = %s, mention-weighted vote should pick down", got)
	}
	tied := []*domain.SourceSentiment{
		{VolumeTrend: domain.VolumeTrendUp, Mentions: 10},
		{VolumeTrend: domain.VolumeTrendDown, Mentions: 10},
	}
	if got := majorityVolumeTrend(tied); got != domain.VolumeTrendStable {
		t.Fatalf("tie must resolve to stable, got %s", got)
	}
}
