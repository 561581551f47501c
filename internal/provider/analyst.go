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

const finnhubBaseURL = "https://finnhub.io"

// AnalystProvider converts Finnhub analyst recommendations and price targets
// into a sentiment score. Recommendations set the base score; the consensus
// price-target upside against the current quote adds an adjustment bounded
// to +/-0.3.
type AnalystProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewAnalystProvider(apiKey string, tracer trace.Tracer, maxRetries int) *AnalystProvider {
	return &AnalystProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    finnhubBaseURL,
		apiKey:     apiKey,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *AnalystProvider) Name() string { return domain.SourceAnalyst }

func (p *AnalystProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *AnalystProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "analyst.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var recs []struct {
		StrongBuy  int    `json:"strongBuy"`
		Buy        int    `json:"buy"`
		Hold       int    `json:"hold"`
		Sell       int    `json:"sell"`
		StrongSell int    `json:"strongSell"`
		Period     string `json:"period"`
	}
	if err := p.get(ctx, "/api/v1/stock/recommendation", symbol, &recs); err != nil {
		return nil, fmt.Errorf("finnhub recommendation: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	// Finnhub returns newest first.
	r := recs[0]
	total := r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
	if total == 0 {
		return nil, nil
	}
	recScore := float64(2*r.StrongBuy+r.Buy-r.Sell-2*r.StrongSell) / float64(2*total)

	score := recScore
	if adj, ok := p.targetAdjustment(ctx, symbol); ok {
		score = recScore + adj
	}

	return &domain.SourceSentiment{
		Source:     domain.SourceAnalyst,
		Symbol:     symbol,
		Score:      clamp(score, -1, 1),
		Confidence: confidenceFromMentions(total, 1.0),
		Mentions:   total,
		Timestamp:  p.now().UTC(),
		Level:      domain.LevelFromScore(score),
	}, nil
}

// targetAdjustment returns the consensus price-target upside as a score
// adjustment bounded to +/-0.3. Both calls are optional enrichment; failures
// just leave the recommendation score alone.
func (p *AnalystProvider) targetAdjustment(ctx context.Context, symbol string) (float64, bool) {
	var target struct {
		TargetMean float64 `json:"targetMean"`
	}
	if err := p.get(ctx, "/api/v1/stock/price-target", symbol, &target); err != nil || target.TargetMean <= 0 {
		return 0, false
	}
	var quote struct {
		Current float64 `json:"c"`
	}
	if err := p.get(ctx, "/api/v1/quote", symbol, &quote); err != nil || quote.Current <= 0 {
		return 0, false
	}
	upside := (target.TargetMean - quote.Current) / quote.Current
	return clamp(upside, -0.3, 0.3), true
}

func (p *AnalystProvider) get(ctx context.Context, path, symbol string, out any) error {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("token", p.apiKey)

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+path+"?"+query.Encode(), nil)
	}, p.maxRetries)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode finnhub payload: %w", err)
	}
	return nil
}
