package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const insiderWindow = 90 * 24 * time.Hour

// InsiderProvider scores Finnhub insider transactions. Each transaction is
// weighted by the square root of its dollar value, so one mega-sale cannot
// drown out a cluster of smaller buys, and decays linearly with filing age
// over a 90-day window. Insider filings are sparse on an hourly scale, so
// the lookback is always at least 90 days.
type InsiderProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewInsiderProvider(apiKey string, tracer trace.Tracer, maxRetries int) *InsiderProvider {
	return &InsiderProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    finnhubBaseURL,
		apiKey:     apiKey,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *InsiderProvider) Name() string { return domain.SourceInsider }

func (p *InsiderProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *InsiderProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "insider.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	lookback := time.Duration(hours) * time.Hour
	if lookback < insiderWindow {
		lookback = insiderWindow
	}
	from := now.Add(-lookback)

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("from", from.Format("2006-01-02"))
	query.Set("to", now.Format("2006-01-02"))
	query.Set("token", p.apiKey)

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+"/api/v1/stock/insider-transactions?"+query.Encode(), nil)
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("finnhub insider transactions: %w", err)
	}

	var payload struct {
		Data []struct {
			Change           float64 `json:"change"`
			TransactionPrice float64 `json:"transactionPrice"`
			TransactionDate  string  `json:"transactionDate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode insider payload: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	var weighted, totalWeight float64
	counted := 0
	for _, tx := range payload.Data {
		value := tx.Change * tx.TransactionPrice
		if value == 0 {
			continue
		}
		weight := math.Sqrt(math.Abs(value)) * insiderRecency(tx.TransactionDate, now)
		if weight == 0 {
			continue
		}
		counted++
		totalWeight += weight
		if value > 0 {
			weighted += weight
		} else {
			weighted -= weight
		}
	}
	if totalWeight == 0 {
		return nil, nil
	}
	score := weighted / totalWeight

	return &domain.SourceSentiment{
		Source:     domain.SourceInsider,
		Symbol:     symbol,
		Score:      clamp(score, -1, 1),
		Confidence: confidenceFromMentions(counted, 0.9),
		Mentions:   counted,
		Timestamp:  now,
		Level:      domain.LevelFromScore(score),
	}, nil
}

// insiderRecency decays linearly from 1 at filing time to 0 at the window
// edge. Transactions with unparseable dates get a neutral half weight.
func insiderRecency(date string, now time.Time) float64 {
	filed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0.5
	}
	age := now.Sub(filed)
	if age < 0 {
		return 1
	}
	if age >= insiderWindow {
		return 0
	}
	return 1 - age.Hours()/insiderWindow.Hours()
}
