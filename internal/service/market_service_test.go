package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickerpulse/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type fakeCandleSource struct {
	candles []domain.Candle
	err     error
	calls   int
}

func (f *fakeCandleSource) GetDailyCandles(context.Context, string, int) ([]domain.Candle, error) {
	f.calls++
	return f.candles, f.err
}

func dailySeries(closes []float64) []domain.Candle {
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Symbol: "AAPL", OpenTime: base.AddDate(0, 0, i), Close: c}
	}
	return out
}

func newTestMarketService(source *fakeCandleSource) *MarketService {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewMarketService(source, tracer, zerolog.Nop())
}

func TestGetDailyCandlesCachesPerSymbolAndRange(t *testing.T) {
	source := &fakeCandleSource{candles: dailySeries([]float64{100, 101, 102})}
	svc := newTestMarketService(source)

	for i := 0; i < 3; i++ {
		candles, err := svc.GetDailyCandles(context.Background(), "AAPL", 90)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candles) != 3 {
			t.Fatalf("got %d candles, want 3", len(candles))
		}
	}
	if source.calls != 1 {
		t.Fatalf("source fetched %d times, want 1", source.calls)
	}

	if _, err := svc.GetDailyCandles(context.Background(), "AAPL", 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("different range must miss the cache, calls = %d", source.calls)
	}
}

func TestGetDailyCandlesDoesNotCacheEmpty(t *testing.T) {
	source := &fakeCandleSource{}
	svc := newTestMarketService(source)

	for i := 0; i < 2; i++ {
		if _, err := svc.GetDailyCandles(context.Background(), "AAPL", 90); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if source.calls != 2 {
		t.Fatalf("empty results must not be cached, calls = %d", source.calls)
	}
}

func TestGetDailyCandlesWrapsSourceError(t *testing.T) {
	source := &fakeCandleSource{err: errors.New("rate limited")}
	svc := newTestMarketService(source)

	if _, err := svc.GetDailyCandles(context.Background(), "AAPL", 90); err == nil {
		t.Fatal("expected error")
	}
}

func TestLatestClose(t *testing.T) {
	source := &fakeCandleSource{candles: dailySeries([]float64{100, 105, 110})}
	svc := newTestMarketService(source)

	price, ok, err := svc.LatestClose(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || price != 110 {
		t.Fatalf("latest close = %v ok=%v, want 110 true", price, ok)
	}
}

func TestCloseOnOrAfter(t *testing.T) {
	source := &fakeCandleSource{candles: dailySeries([]float64{100, 105, 110})}
	svc := newTestMarketService(source)

	cutoff := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	price, ok, err := svc.CloseOnOrAfter(context.Background(), "AAPL", cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || price != 105 {
		t.Fatalf("close on or after %v = %v ok=%v, want 105 true", cutoff, price, ok)
	}

	_, ok, err = svc.CloseOnOrAfter(context.Background(), "AAPL", cutoff.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no close after the end of the series")
	}
}
