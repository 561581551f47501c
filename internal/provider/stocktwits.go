package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const stocktwitsBaseURL = "https://api.stocktwits.com"

// StockTwitsProvider reads the public symbol stream. Messages carry optional
// user-declared Bullish/Bearish labels; labeled messages contribute their
// label directly and unlabeled ones go through the text scorer.
type StockTwitsProvider struct {
	client     *http.Client
	baseURL    string
	scorer     TextScorer
	limiter    *RateLimiter
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

func NewStockTwitsProvider(scorer TextScorer, tracer trace.Tracer, maxRetries int) *StockTwitsProvider {
	return &StockTwitsProvider{
		client:     &http.Client{Timeout: 20 * time.Second},
		baseURL:    stocktwitsBaseURL,
		scorer:     scorer,
		limiter:    NewRateLimiter(30, time.Minute),
		tracer:     tracer,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (p *StockTwitsProvider) Name() string { return domain.SourceStockTwits }

func (p *StockTwitsProvider) IsAvailable() bool { return true }

func (p *StockTwitsProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "stocktwits.get-sentiment")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := fetchBody(ctx, p.client, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/api/2/streams/symbol/%s.json", p.baseURL, url.PathEscape(symbol))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("stocktwits stream: %w", err)
	}

	var payload struct {
		Messages []struct {
			Body      string `json:"body"`
			CreatedAt string `json:"created_at"`
			Entities  struct {
				Sentiment *struct {
					Basic string `json:"basic"`
				} `json:"sentiment"`
			} `json:"entities"`
			Likes struct {
				Total float64 `json:"total"`
			} `json:"likes"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode stocktwits response: %w", err)
	}

	now := p.now().UTC()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	var labeledSum float64
	var labeled int
	var unlabeled []TextItem
	var times []time.Time
	for _, msg := range payload.Messages {
		createdAt, err := time.Parse("2006-01-02T15:04:05Z", msg.CreatedAt)
		if err != nil {
			continue
		}
		if createdAt.Before(cutoff) {
			continue
		}
		times = append(times, createdAt)
		if msg.Entities.Sentiment != nil {
			switch strings.ToLower(msg.Entities.Sentiment.Basic) {
			case "bullish":
				labeledSum++
				labeled++
				continue
			case "bearish":
				labeledSum--
				labeled++
				continue
			}
		}
		unlabeled = append(unlabeled, TextItem{
			Text:       sanitizeText(msg.Body, 500),
			Engagement: msg.Likes.Total,
			Timestamp:  createdAt,
		})
	}

	mentions := labeled + len(unlabeled)
	if mentions == 0 {
		return nil, nil
	}

	var score float64
	var confidence float64
	switch {
	case len(unlabeled) == 0:
		score = labeledSum / float64(labeled)
		confidence = confidenceFromMentions(labeled, 0.9)
	default:
		textScore, textConf, err := p.scorer.ScoreItems(ctx, symbol, unlabeled)
		if err != nil {
			return nil, fmt.Errorf("score stocktwits messages: %w", err)
		}
		if labeled == 0 {
			score = textScore
			confidence = textConf
			break
		}
		// Blend by message counts; explicit labels carry more signal than
		// lexicon-scored text.
		labelScore := labeledSum / float64(labeled)
		labelWeight := float64(labeled) * 1.5
		textWeight := float64(len(unlabeled))
		score = (labelScore*labelWeight + textScore*textWeight) / (labelWeight + textWeight)
		confidence = confidenceFromMentions(mentions, 0.85)
	}

	return &domain.SourceSentiment{
		Source:      domain.SourceStockTwits,
		Symbol:      symbol,
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confidence, 0, 1),
		Mentions:    mentions,
		Timestamp:   now,
		Level:       domain.LevelFromScore(score),
		VolumeTrend: volumeTrendFromTimestamps(times, now, hours),
	}, nil
}
