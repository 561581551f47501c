package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const trendsBaseURL = "https://trends.google.com"

// TrendsProvider derives attention momentum from Google Trends search
// interest. The API is unofficial: an explore call issues a widget token,
// then the widgetdata call returns the interest-over-time series. Both
// responses carry an anti-hijacking prefix that must be stripped before
// decoding. Search interest has no direction of its own, so the score is the
// change in interest, not bullishness.
type TrendsProvider struct {
	client     *http.Client
	baseURL    string
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewTrendsProvider(tracer trace.Tracer, maxRetries int) *TrendsProvider {
	return &TrendsProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    trendsBaseURL,
		limiter:    NewRateLimiter(10, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *TrendsProvider) Name() string { return domain.SourceTrends }

func (p *TrendsProvider) IsAvailable() bool { return true }

func (p *TrendsProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "trends.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, widgetReq, err := p.explore(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("trends explore: %w", err)
	}
	values, err := p.interestOverTime(ctx, token, widgetReq)
	if err != nil {
		return nil, fmt.Errorf("trends widgetdata: %w", err)
	}
	if len(values) < 8 {
		return nil, nil
	}

	// Momentum of search interest: recent quarter of the series against the
	// rest. Interest values are 0-100.
	split := len(values) * 3 / 4
	var prior, recent float64
	for i, v := range values {
		if i < split {
			prior += v
		} else {
			recent += v
		}
	}
	prior /= float64(split)
	recent /= float64(len(values) - split)

	var score float64
	if prior > 0 {
		score = clamp((recent-prior)/prior, -1, 1)
	} else if recent > 0 {
		score = 1
	}

	return &domain.SourceSentiment{
		Source:     domain.SourceTrends,
		Symbol:     symbol,
		Score:      score,
		Confidence: 0.4,
		Mentions:   len(values),
		Timestamp:  p.now().UTC(),
		Level:      domain.LevelFromScore(score),
	}, nil
}

func (p *TrendsProvider) explore(ctx context.Context, symbol string) (string, string, error) {
	exploreReq := map[string]any{
		"comparisonItem": []map[string]any{
			{"keyword": symbol + " stock", "geo": "US", "time": "now 7-d"},
		},
		"category": 0,
		"property": "",
	}
	reqJSON, err := json.Marshal(exploreReq)
	if err != nil {
		return "", "", err
	}

	query := url.Values{}
	query.Set("hl", "en-US")
	query.Set("tz", "0")
	query.Set("req", string(reqJSON))

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+"/trends/api/explore?"+query.Encode(), nil)
	}, p.maxRetries)
	if err != nil {
		return "", "", err
	}

	var payload struct {
		Widgets []struct {
			ID      string          `json:"id"`
			Token   string          `json:"token"`
			Request json.RawMessage `json:"request"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal(stripTrendsPrefix(body), &payload); err != nil {
		return "", "", fmt.Errorf("decode explore payload: %w", err)
	}
	for _, w := range payload.Widgets {
		if w.ID == "TIMESERIES" {
			return w.Token, string(w.Request), nil
		}
	}
	return "", "", fmt.Errorf("explore payload has no timeseries widget")
}

func (p *TrendsProvider) interestOverTime(ctx context.Context, token, widgetReq string) ([]float64, error) {
	query := url.Values{}
	query.Set("hl", "en-US")
	query.Set("tz", "0")
	query.Set("token", token)
	query.Set("req", widgetReq)

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+"/trends/api/widgetdata/multiline?"+query.Encode(), nil)
	}, p.maxRetries)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Default struct {
			TimelineData []struct {
				Value []float64 `json:"value"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(stripTrendsPrefix(body), &payload); err != nil {
		return nil, fmt.Errorf("decode widgetdata payload: %w", err)
	}

	values := make([]float64, 0, len(payload.Default.TimelineData))
	for _, point := range payload.Default.TimelineData {
		if len(point.Value) > 0 {
			values = append(values, point.Value[0])
		}
	}
	return values, nil
}

func stripTrendsPrefix(body []byte) []byte {
	if i := bytes.IndexByte(body, '{'); i > 0 {
		return body[i:]
	}
	return body
}
