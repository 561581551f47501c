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

// DarkPoolProvider scores off-exchange block activity from a flow data
// vendor. Buy-side volume dominance maps to a positive score.
type DarkPoolProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewDarkPoolProvider(baseURL, apiKey string, tracer trace.Tracer, maxRetries int) *DarkPoolProvider {
	return &DarkPoolProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *DarkPoolProvider) Name() string { return domain.SourceDarkPool }

func (p *DarkPoolProvider) IsAvailable() bool { return p.baseURL != "" && p.apiKey != "" }

func (p *DarkPoolProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "darkpool.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("hours", strconv.Itoa(hours))

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/v1/darkpool/%s?%s", p.baseURL, url.PathEscape(symbol), query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", p.apiKey)
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("dark pool flow: %w", err)
	}

	var payload struct {
		BoughtVolume float64 `json:"bought_volume"`
		SoldVolume   float64 `json:"sold_volume"`
		Trades       int     `json:"trades"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode dark pool payload: %w", err)
	}

	total := payload.BoughtVolume + payload.SoldVolume
	if total == 0 || payload.Trades == 0 {
		return nil, nil
	}
	score := (payload.BoughtVolume - payload.SoldVolume) / total

	return &domain.SourceSentiment{
		Source:     domain.SourceDarkPool,
		Symbol:     symbol,
		Score:      clamp(score, -1, 1),
		Confidence: confidenceFromMentions(payload.Trades, 0.95),
		Mentions:   payload.Trades,
		Timestamp:  p.now().UTC(),
		Level:      domain.LevelFromScore(score),
	}, nil
}
