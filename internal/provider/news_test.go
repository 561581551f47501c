package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"tickerpulse/internal/domain"
)

func rssResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/rss+xml"}},
	}
}

func newsFeed(items string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>headlines</title>%s</channel></rss>`, items)
}

func TestNewsGetSentiment(t *testing.T) {
	scorer := &stubScorer{score: 0.5, confidence: 0.7}
	p := NewNewsProvider("http://news.test/rss?s=%s", scorer, testTracer())
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.parser.Client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("s"); got != "AAPL" {
			t.Fatalf("feed queried for %q, want AAPL", got)
		}
		return rssResponse(newsFeed(`
			<item><title>Apple beats estimates</title><description>Strong quarter</description><pubDate>Fri, 13 Feb 2026 11:00:00 GMT</pubDate></item>
			<item><title>Apple raises guidance</title><pubDate>Fri, 13 Feb 2026 10:00:00 GMT</pubDate></item>`)), nil
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Source != domain.SourceNews {
		t.Fatalf("source = %s", got.Source)
	}
	if got.Score != 0.5 || got.Confidence != 0.7 {
		t.Fatalf("score/confidence = %v/%v", got.Score, got.Confidence)
	}
	if got.Mentions != 2 {
		t.Fatalf("mentions = %d, want 2", got.Mentions)
	}
	if len(scorer.gotItems) != 2 {
		t.Fatalf("scorer received %d items, want 2", len(scorer.gotItems))
	}
	if !strings.Contains(scorer.gotItems[0].Text, "Strong quarter") {
		t.Fatalf("description not included in scored text: %q", scorer.gotItems[0].Text)
	}
}

func TestNewsIgnoresStaleHeadlines(t *testing.T) {
	p := NewNewsProvider("http://news.test/rss?s=%s", &stubScorer{}, testTracer())
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.parser.Client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return rssResponse(newsFeed(`
			<item><title>Old news</title><pubDate>Sun, 01 Feb 2026 11:00:00 GMT</pubDate></item>`)), nil
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for stale-only feed, got %+v", got)
	}
}

func TestNewsAvailability(t *testing.T) {
	if p := NewNewsProvider("http://news.test/rss?s=%s", &stubScorer{}, testTracer()); !p.IsAvailable() {
		t.Error("template with placeholder must be available")
	}
	if p := NewNewsProvider("http://news.test/rss", &stubScorer{}, testTracer()); p.IsAvailable() {
		t.Error("template without placeholder must not be available")
	}
}
