package service

import (
	"context"
	"fmt"
	"time"

	"tickerpulse/internal/cache"
	"tickerpulse/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// candleCacheTTL bounds staleness of the daily series. Daily bars only change
// once per session, so a short TTL exists mainly to pick up the forming bar.
const candleCacheTTL = 10 * time.Minute

// CandleSource fetches daily OHLCV history for one symbol.
type CandleSource interface {
	GetDailyCandles(ctx context.Context, symbol string, rangeDays int) ([]domain.Candle, error)
}

// MarketService serves candle history through an in-process cache so the
// confluence calculator, the scan job and the outcome resolver share fetches.
type MarketService struct {
	source CandleSource
	cache  *cache.TTLCache[[]domain.Candle]
	tracer trace.Tracer
	log    zerolog.Logger
}

func NewMarketService(source CandleSource, tracer trace.Tracer, log zerolog.Logger) *MarketService {
	return &MarketService{
		source: source,
		cache:  cache.NewTTLCache[[]domain.Candle](),
		tracer: tracer,
		log:    log,
	}
}

// GetDailyCandles returns up to rangeDays of daily bars, oldest first.
func (s *MarketService) GetDailyCandles(ctx context.Context, symbol string, rangeDays int) ([]domain.Candle, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-daily-candles",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("range_days", rangeDays)))
	defer span.End()

	key := fmt.Sprintf("%s:%d", symbol, rangeDays)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	candles, err := s.source.GetDailyCandles(ctx, symbol, rangeDays)
	if err != nil {
		return nil, fmt.Errorf("daily candles for %s: %w", symbol, err)
	}
	if len(candles) > 0 {
		s.cache.Set(key, candles, candleCacheTTL)
	}
	return candles, nil
}

// LatestClose returns the most recent daily close, or false when no history
// exists.
func (s *MarketService) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	candles, err := s.GetDailyCandles(ctx, symbol, 30)
	if err != nil {
		return 0, false, err
	}
	if len(candles) == 0 {
		return 0, false, nil
	}
	return candles[len(candles)-1].Close, true, nil
}

// CloseOnOrAfter returns the first daily close at or after ts. Used to settle
// forward returns once enough sessions have elapsed.
func (s *MarketService) CloseOnOrAfter(ctx context.Context, symbol string, ts time.Time) (float64, bool, error) {
	rangeDays := int(time.Since(ts).Hours()/24) + 5
	if rangeDays < 30 {
		rangeDays = 30
	}
	candles, err := s.GetDailyCandles(ctx, symbol, rangeDays)
	if err != nil {
		return 0, false, err
	}
	for _, c := range candles {
		if !c.OpenTime.Before(ts) {
			return c.Close, true, nil
		}
	}
	return 0, false, nil
}
