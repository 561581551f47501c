package cache

import (
	"context"
	"testing"
	"time"

	"tickerpulse/internal/domain"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[int]()
	c.Set("k", 42, 10*time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("expected hit with 42, got (%v, %v)", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, len=%d", c.Len())
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string]()
	c.Set("k", "v", 0)
	time.Sleep(5 * time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected permanent entry, got (%q, %v)", v, ok)
	}
}

func TestMemorySourceCacheRoundTrip(t *testing.T) {
	c := NewMemorySourceCache()
	ctx := context.Background()
	if _, ok := c.GetSource(ctx, "twitter:AAPL:24"); ok {
		t.Fatal("expected miss on empty cache")
	}
	record := &domain.SourceSentiment{Source: "twitter", Symbol: "AAPL", Score: 0.4, Confidence: 0.8}
	c.SetSource(ctx, "twitter:AAPL:24", record, time.Minute)
	got, ok := c.GetSource(ctx, "twitter:AAPL:24")
	if !ok || got.Score != 0.4 || got.Source != "twitter" {
		t.Fatalf("unexpected cached value: %+v ok=%v", got, ok)
	}
	// Cached value is a copy; mutating it must not affect the cache.
	got.Score = -1
	again, _ := c.GetSource(ctx, "twitter:AAPL:24")
	if again.Score != 0.4 {
		t.Fatalf("cache entry mutated: %+v", again)
	}
}
