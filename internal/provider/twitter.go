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

const twitterBaseURL = "https://api.twitter.com"

// TwitterProvider scores recent cashtag mentions via the v2 recent search API.
type TwitterProvider struct {
	client     *http.Client
	baseURL    string
	token      string
	scorer     TextScorer
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewTwitterProvider(token string, scorer TextScorer, tracer trace.Tracer, maxRetries int) *TwitterProvider {
	return &TwitterProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    twitterBaseURL,
		token:      token,
		scorer:     scorer,
		limiter:    NewRateLimiter(60, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *TwitterProvider) Name() string { return domain.SourceTwitter }

func (p *TwitterProvider) IsAvailable() bool { return p.token != "" }

func (p *TwitterProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "twitter.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	startTime := now.Add(-time.Duration(hours) * time.Hour)

	query := url.Values{}
	query.Set("query", fmt.Sprintf("($%s OR #%s) lang:en -is:retweet", symbol, symbol))
	query.Set("max_results", "100")
	query.Set("start_time", startTime.Format(time.RFC3339))
	query.Set("tweet.fields", "created_at,public_metrics")

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			p.baseURL+"/2/tweets/search/recent?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.token)
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	var payload struct {
		Data []struct {
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				RetweetCount int `json:"retweet_count"`
				ReplyCount   int `json:"reply_count"`
				LikeCount    int `json:"like_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode twitter response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	items := make([]TextItem, 0, len(payload.Data))
	times := make([]time.Time, 0, len(payload.Data))
	for _, tw := range payload.Data {
		engagement := float64(tw.PublicMetrics.LikeCount + tw.PublicMetrics.RetweetCount*2 + tw.PublicMetrics.ReplyCount)
		items = append(items, TextItem{
			Text:       sanitizeText(tw.Text, 500),
			Engagement: engagement,
			Timestamp:  tw.CreatedAt,
		})
		times = append(times, tw.CreatedAt)
	}

	score, confidence, err := p.scorer.ScoreItems(ctx, symbol, items)
	if err != nil {
		return nil, fmt.Errorf("score tweets: %w", err)
	}

	return &domain.SourceSentiment{
		Source:      domain.SourceTwitter,
		Symbol:      symbol,
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confidence, 0, 1),
		Mentions:    len(items),
		Timestamp:   now,
		Level:       domain.LevelFromScore(score),
		VolumeTrend: volumeTrendFromTimestamps(times, now, hours),
	}, nil
}
