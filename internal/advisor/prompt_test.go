package advisor

import (
	"strings"
	"testing"

	"tickerpulse/internal/domain"
)

func TestFormatMarketContextEmpty(t *testing.T) {
	got := FormatMarketContext(nil, nil, nil)
	if got != "No data available." {
		t.Fatalf("got %q", got)
	}
}

func TestFormatMarketContextDivergence(t *testing.T) {
	agg := &domain.AggregatedSentiment{
		Symbol:             "GME",
		UnifiedSentiment:   0.1,
		SentimentLevel:     domain.LevelNeutral,
		Confidence:         0.4,
		SourceCount:        4,
		DivergenceDetected: true,
		DivergenceScore:    0.81,
		ProvidersUsed:      []string{domain.SourceReddit},
		SourceBreakdown:    map[string]float64{domain.SourceReddit: 100},
	}
	got := FormatMarketContext([]string{"GME"}, []*domain.AggregatedSentiment{agg}, nil)
	if !strings.Contains(got, "DIVERGENCE 0.81") {
		t.Fatalf("divergence flag missing:\n%s", got)
	}
	if strings.Contains(got, "No data available for") {
		t.Fatalf("GME has data, must not be listed as missing:\n%s", got)
	}
}

func TestFormatMarketContextMissingSymbols(t *testing.T) {
	score := &domain.ConfluenceScore{
		Symbol:          "AAPL",
		ConfluenceScore: 0.5,
		ConfluenceLevel: domain.ConfluenceModerate,
		ComponentsUsed:  []string{"technical"},
	}
	got := FormatMarketContext([]string{"AAPL", "XYZ"}, nil, []*domain.ConfluenceScore{score})
	if !strings.Contains(got, "No data available for: XYZ") {
		t.Fatalf("missing-symbol list wrong:\n%s", got)
	}
}

func TestBuildSystemPromptCarriesContext(t *testing.T) {
	prompt := BuildSystemPrompt("CONTEXT-MARKER")
	if !strings.Contains(prompt, "CONTEXT-MARKER") {
		t.Fatal("market context not embedded")
	}
	if !strings.Contains(prompt, "LIVE DATA") {
		t.Fatal("live data header missing")
	}
}
