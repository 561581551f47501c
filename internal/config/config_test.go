package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sentiment.MinConfidence != 0.3 {
		t.Fatalf("default min confidence = %v, want 0.3", cfg.Sentiment.MinConfidence)
	}
	if cfg.Sentiment.DecayHalfLifeHours != 6 {
		t.Fatalf("default half life = %v, want 6", cfg.Sentiment.DecayHalfLifeHours)
	}
	if cfg.Confluence.MinThreshold != 0.6 || cfg.Confluence.HighThreshold != 0.8 {
		t.Fatalf("default thresholds = (%v, %v), want (0.6, 0.8)",
			cfg.Confluence.MinThreshold, cfg.Confluence.HighThreshold)
	}
	if w := cfg.Sentiment.Weights["dark_pool"]; w != 1.5 {
		t.Fatalf("canonical dark_pool weight = %v, want 1.5", w)
	}
}

func TestLoadRejectsOutOfRangeThreshold(t *testing.T) {
	t.Setenv("SENTIMENT_MIN_CONFIDENCE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for min confidence > 1")
	}
}

func TestLoadRejectsWeightsNotSummingToOne(t *testing.T) {
	t.Setenv("CONFLUENCE_WEIGHT_TECHNICAL", "0.9")
	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error for confluence weights not summing to 1")
	}
	if !strings.Contains(err.Error(), "confluence weights") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("CONFLUENCE_MIN_THRESHOLD", "0.9")
	t.Setenv("CONFLUENCE_HIGH_THRESHOLD", "0.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for min threshold above high threshold")
	}
}

func TestLoadRejectsBadWatchlistSymbol(t *testing.T) {
	t.Setenv("WATCHLIST", "AAPL,not a symbol")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for malformed watchlist symbol")
	}
}

func TestSourceWeightOverride(t *testing.T) {
	t.Setenv("SENTIMENT_WEIGHT_GOOGLE_TRENDS", "0.9")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := cfg.Sentiment.Weights["google_trends"]; w != 0.9 {
		t.Fatalf("overridden google_trends weight = %v, want 0.9", w)
	}
}
