package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"tickerpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// stubScorer returns fixed values and records what it was asked to score.
type stubScorer struct {
	score      float64
	confidence float64
	gotItems   []TextItem
}

func (s *stubScorer) ScoreItems(_ context.Context, _ string, items []TextItem) (float64, float64, error) {
	s.gotItems = items
	return s.score, s.confidence, nil
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestTwitterGetSentiment(t *testing.T) {
	scorer := &stubScorer{score: 0.6, confidence: 0.8}
	p := NewTwitterProvider("token", scorer, testTracer(), 1)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/2/tweets/search/recent" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("expected bearer auth, got %q", req.Header.Get("Authorization"))
		}
		body := `{"data":[
			{"text":"$AAPL to the moon","created_at":"2026-02-13T11:30:00Z","public_metrics":{"like_count":10,"retweet_count":2,"reply_count":1}},
			{"text":"selling all my $AAPL","created_at":"2026-02-13T10:00:00Z","public_metrics":{"like_count":1,"retweet_count":0,"reply_count":0}}
		]}`
		return jsonResponse(body), nil
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Source != domain.SourceTwitter || got.Symbol != "AAPL" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if got.Score != 0.6 || got.Confidence != 0.8 {
		t.Fatalf("scorer values not propagated: %+v", got)
	}
	if got.Mentions != 2 {
		t.Fatalf("mentions = %d, want 2", got.Mentions)
	}
	if got.Level != domain.LevelVeryBullish {
		t.Fatalf("level = %s, want very_bullish", got.Level)
	}
	if len(scorer.gotItems) != 2 {
		t.Fatalf("scorer received %d items, want 2", len(scorer.gotItems))
	}
	if scorer.gotItems[0].Engagement != 15 {
		t.Fatalf("engagement = %v, want likes + 2*retweets + replies = 15", scorer.gotItems[0].Engagement)
	}
}

func TestTwitterNoData(t *testing.T) {
	p := NewTwitterProvider("token", &stubScorer{}, testTracer(), 1)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(`{"data":[]}`), nil
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for empty window, got %+v", got)
	}
}

func TestTwitterUnavailableWithoutToken(t *testing.T) {
	p := NewTwitterProvider("", &stubScorer{}, testTracer(), 1)
	if p.IsAvailable() {
		t.Fatal("expected provider to be unavailable without a token")
	}
}
