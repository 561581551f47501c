package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const redditBaseURL = "https://www.reddit.com"

// RedditProvider searches recent posts mentioning the symbol across a set of
// finance subreddits.
type RedditProvider struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	subreddits []string
	scorer     TextScorer
	limiter    *RateLimiter
	tracer     trace.Tracer
	log        zerolog.Logger
	maxRetries int
	now        func() time.Time
}

func NewRedditProvider(subreddits []string, scorer TextScorer, tracer trace.Tracer, log zerolog.Logger, maxRetries int) *RedditProvider {
	return &RedditProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    redditBaseURL,
		userAgent:  defaultUserAgent,
		subreddits: subreddits,
		scorer:     scorer,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		log:        log,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *RedditProvider) Name() string { return domain.SourceReddit }

func (p *RedditProvider) IsAvailable() bool { return len(p.subreddits) > 0 }

func (p *RedditProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.get-sentiment")
	defer span.End()

	now := p.now().UTC()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	var items []TextItem
	var times []time.Time
	for _, sub := range p.subreddits {
		posts, err := p.search(ctx, sub, symbol)
		if err != nil {
			// One dead subreddit should not sink the whole source.
			p.log.Warn().Err(err).Str("subreddit", sub).Msg("reddit search failed")
			continue
		}
		for _, post := range posts {
			if post.Timestamp.Before(cutoff) {
				continue
			}
			items = append(items, post)
			times = append(times, post.Timestamp)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	score, confidence, err := p.scorer.ScoreItems(ctx, symbol, items)
	if err != nil {
		return nil, fmt.Errorf("score reddit posts: %w", err)
	}

	return &domain.SourceSentiment{
		Source:      domain.SourceReddit,
		Symbol:      symbol,
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confidence, 0, 1),
		Mentions:    len(items),
		Timestamp:   now,
		Level:       domain.LevelFromScore(score),
		VolumeTrend: volumeTrendFromTimestamps(times, now, hours),
	}, nil
}

func (p *RedditProvider) search(ctx context.Context, subreddit, symbol string) ([]TextItem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", symbol)
	query.Set("restrict_sr", "1")
	query.Set("sort", "new")
	query.Set("t", "day")
	query.Set("limit", "100")

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/r/%s/search.json?%s", p.baseURL, url.PathEscape(subreddit), query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", p.userAgent)
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data struct {
					Title       string  `json:"title"`
					SelfText    string  `json:"selftext"`
					CreatedUTC  float64 `json:"created_utc"`
					Score       float64 `json:"score"`
					NumComments float64 `json:"num_comments"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}

	items := make([]TextItem, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		data := row.Data
		text := sanitizeText(data.Title+" "+data.SelfText, 500)
		if text == "" {
			continue
		}
		items = append(items, TextItem{
			Text:       text,
			Engagement: data.Score + data.NumComments,
			Timestamp:  time.Unix(int64(data.CreatedUTC), 0).UTC(),
		})
	}
	return items, nil
}
