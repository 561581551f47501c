package service

import (
	"context"

	"tickerpulse/internal/confluence"
	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// candleRangeDays is the history pulled for scoring. A full year keeps the
// 200-bar SMA meaningful.
const candleRangeDays = 365

// ConfluenceService fronts the calculator with market-data retrieval so
// callers only hand over a symbol.
type ConfluenceService struct {
	market     *MarketService
	calculator *confluence.Calculator
	defaultHrs int
	tracer     trace.Tracer
}

func NewConfluenceService(market *MarketService, calculator *confluence.Calculator, defaultHours int, tracer trace.Tracer) *ConfluenceService {
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return &ConfluenceService{
		market:     market,
		calculator: calculator,
		defaultHrs: defaultHours,
		tracer:     tracer,
	}
}

// Score fetches candle history and runs the confluence calculation. Returns
// (nil, nil) when the symbol has too little history for a technical score.
func (s *ConfluenceService) Score(ctx context.Context, symbol string, hours int, opts *confluence.Options) (*domain.ConfluenceScore, error) {
	ctx, span := s.tracer.Start(ctx, "confluence-service.score",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if hours <= 0 {
		hours = s.defaultHrs
	}

	candles, err := s.market.GetDailyCandles(ctx, symbol, candleRangeDays)
	if err != nil {
		return nil, err
	}
	return s.calculator.Calculate(ctx, symbol, candles, hours, opts)
}

// ScorePlain is Score with the configured component toggles.
func (s *ConfluenceService) ScorePlain(ctx context.Context, symbol string, hours int) (*domain.ConfluenceScore, error) {
	return s.Score(ctx, symbol, hours, nil)
}
