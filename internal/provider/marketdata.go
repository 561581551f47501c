package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const yahooChartBaseURL = "https://query1.finance.yahoo.com"

// MarketDataProvider fetches daily OHLCV bars from the Yahoo Finance chart
// endpoint.
type MarketDataProvider struct {
	client     *http.Client
	baseURL    string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
}

func NewMarketDataProvider(tracer trace.Tracer, maxRetries int) *MarketDataProvider {
	return &MarketDataProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    yahooChartBaseURL,
		limiter:    NewRateLimiter(60, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
	}
}

// GetDailyCandles returns up to rangeDays of daily bars, oldest first. Bars
// with null fields (halted or partial sessions) are dropped.
func (p *MarketDataProvider) GetDailyCandles(ctx context.Context, symbol string, rangeDays int) ([]domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "marketdata.get-daily-candles")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	chartRange := "1y"
	switch {
	case rangeDays <= 30:
		chartRange = "1mo"
	case rangeDays <= 90:
		chartRange = "3mo"
	case rangeDays <= 180:
		chartRange = "6mo"
	}

	query := url.Values{}
	query.Set("interval", "1d")
	query.Set("range", chartRange)

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", defaultUserAgent)
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("chart fetch: %w", err)
	}

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*float64 `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart payload: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]domain.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil || quote.Open[i] == nil ||
			quote.High[i] == nil || quote.Low[i] == nil || quote.Volume[i] == nil {
			continue
		}
		candles = append(candles, domain.Candle{
			Symbol:   symbol,
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     *quote.Open[i],
			High:     *quote.High[i],
			Low:      *quote.Low[i],
			Close:    *quote.Close[i],
			Volume:   *quote.Volume[i],
		})
	}
	return candles, nil
}
