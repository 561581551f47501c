package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// OptionsFlowProvider scores unusual options activity by premium skew:
// call premium over put premium maps to a positive score.
type OptionsFlowProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewOptionsFlowProvider(baseURL, apiKey string, tracer trace.Tracer, maxRetries int) *OptionsFlowProvider {
	return &OptionsFlowProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *OptionsFlowProvider) Name() string { return domain.SourceOptionsFlow }

func (p *OptionsFlowProvider) IsAvailable() bool { return p.baseURL != "" && p.apiKey != "" }

func (p *OptionsFlowProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "optionsflow.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("hours", strconv.Itoa(hours))

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/v1/options-flow/%s?%s", p.baseURL, url.PathEscape(symbol), query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", p.apiKey)
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("options flow: %w", err)
	}

	var payload struct {
		CallPremium float64 `json:"call_premium"`
		PutPremium  float64 `json:"put_premium"`
		Trades      int     `json:"trades"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode options flow payload: %w", err)
	}

	total := payload.CallPremium + payload.PutPremium
	if total == 0 || payload.Trades == 0 {
		return nil, nil
	}
	score := (payload.CallPremium - payload.PutPremium) / total

	return &domain.SourceSentiment{
		Source:     domain.SourceOptionsFlow,
		Symbol:     symbol,
		Score:      clamp(score, -1, 1),
		Confidence: confidenceFromMentions(payload.Trades, 0.95),
		Mentions:   payload.Trades,
		Timestamp:  p.now().UTC(),
		Level:      domain.LevelFromScore(score),
	}, nil
}
