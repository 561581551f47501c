package provider

import (
	"context"
	"math"
	"net/http"
	"testing"

	"tickerpulse/internal/domain"
)

func TestAnalystGetSentiment(t *testing.T) {
	p := NewAnalystProvider("key", testTracer(), 1)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("token") != "key" {
			t.Fatalf("expected api token in query, got %q", req.URL.Query().Get("token"))
		}
		switch req.URL.Path {
		case "/api/v1/stock/recommendation":
			return jsonResponse(`[{"strongBuy":10,"buy":5,"hold":5,"sell":0,"strongSell":0,"period":"2026-02-01"}]`), nil
		case "/api/v1/stock/price-target":
			return jsonResponse(`{"targetMean":230}`), nil
		case "/api/v1/quote":
			return jsonResponse(`{"c":200}`), nil
		default:
			t.Fatalf("unexpected path: %s", req.URL.Path)
			return nil, nil
		}
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}
	// Recommendations: (2*10+5)/(2*20) = 0.625. Upside adjustment: 15%,
	// inside the +/-0.3 bound. Score: 0.625 + 0.15 = 0.775.
	if math.Abs(got.Score-0.775) > 1e-9 {
		t.Fatalf("score = %v, want 0.775", got.Score)
	}
	if got.Mentions != 20 {
		t.Fatalf("mentions = %d, want 20 analysts", got.Mentions)
	}
	if got.Source != domain.SourceAnalyst {
		t.Fatalf("source = %s", got.Source)
	}
}

func TestAnalystRecommendationOnlyWhenTargetMissing(t *testing.T) {
	p := NewAnalystProvider("key", testTracer(), 1)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/api/v1/stock/recommendation":
			return jsonResponse(`[{"strongBuy":0,"buy":0,"hold":2,"sell":4,"strongSell":4}]`), nil
		default:
			return jsonResponse(`{}`), nil
		}
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (0 - 4 - 8) / 20 = -0.6, untouched by the missing price target.
	if math.Abs(got.Score-(-0.6)) > 1e-9 {
		t.Fatalf("score = %v, want -0.6", got.Score)
	}
}

func TestAnalystNoData(t *testing.T) {
	p := NewAnalystProvider("key", testTracer(), 1)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(`[]`), nil
	})}

	got, err := p.GetSentiment(context.Background(), "AAPL", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %+v", got)
	}
}
