package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickerpulse/internal/domain"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/trace"
)

// NewsProvider scores headlines from a per-symbol RSS feed. feedURLTemplate
// must contain one %s placeholder for the symbol.
type NewsProvider struct {
	parser          *gofeed.Parser
	feedURLTemplate string
	scorer          TextScorer
	tracer          trace.Tracer
	now             func() time.Time
}

func NewNewsProvider(feedURLTemplate string, scorer TextScorer, tracer trace.Tracer) *NewsProvider {
	return &NewsProvider{
		parser:          gofeed.NewParser(),
		feedURLTemplate: feedURLTemplate,
		scorer:          scorer,
		tracer:          tracer,
		now:             time.Now,
	}
}

func (p *NewsProvider) Name() string { return domain.SourceNews }

func (p *NewsProvider) IsAvailable() bool {
	return strings.Contains(p.feedURLTemplate, "%s")
}

func (p *NewsProvider) GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error) {
	ctx, span := p.tracer.Start(ctx, "news.get-sentiment")
	defer span.End()

	feedURL := fmt.Sprintf(p.feedURLTemplate, symbol)
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse news feed: %w", err)
	}

	now := p.now().UTC()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	var items []TextItem
	var times []time.Time
	for _, item := range feed.Items {
		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed.UTC()
		}
		if publishedAt.Before(cutoff) {
			continue
		}
		text := sanitizeText(item.Title+" "+item.Description, 500)
		if text == "" {
			continue
		}
		items = append(items, TextItem{Text: text, Engagement: 0, Timestamp: publishedAt})
		times = append(times, publishedAt)
	}
	if len(items) == 0 {
		return nil, nil
	}

	score, confidence, err := p.scorer.ScoreItems(ctx, symbol, items)
	if err != nil {
		return nil, fmt.Errorf("score headlines: %w", err)
	}

	return &domain.SourceSentiment{
		Source:      domain.SourceNews,
		Symbol:      symbol,
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confidence, 0, 1),
		Mentions:    len(items),
		Timestamp:   now,
		Level:       domain.LevelFromScore(score),
		VolumeTrend: volumeTrendFromTimestamps(times, now, hours),
	}, nil
}
