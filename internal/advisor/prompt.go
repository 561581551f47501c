package advisor

import (
	"fmt"
	"strings"
	"time"

	"tickerpulse/internal/domain"
)

const briefPhilosophy = `You are an equity sentiment analyst bot. Your role is to interpret the sentiment and confluence data you are given, NOT to generate scores yourself.

How to read the data:
- Unified sentiment is in [-1, 1]: below -0.2 is bearish, above 0.2 is bullish.
- Confluence strength is in [0, 1] and measures how strongly the components agree. Directional bias carries the direction separately.
- Divergence means the sources disagree; flag it when present.
- Source breakdown percentages show which sources drove the number.

Rules:
- Always reference the specific scores and sources when making observations.
- Never fabricate data. If a symbol has no data below, say so honestly.
- Express uncertainty when the divergence flag is set or confidence is low.
- Keep responses short. You are talking via Telegram.
- Do not add financial advice disclaimers; the user understands this is informational.`

func BuildSystemPrompt(marketContext string) string {
	var sb strings.Builder
	sb.WriteString(briefPhilosophy)
	sb.WriteString("\n\n--- LIVE DATA (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(marketContext)
	return sb.String()
}

// FormatMarketContext renders the fetched data as prompt context. Symbols
// with no data are listed explicitly so the model does not speculate.
func FormatMarketContext(symbols []string, sentiments []*domain.AggregatedSentiment, confluences []*domain.ConfluenceScore) string {
	var sb strings.Builder

	covered := make(map[string]bool)

	if len(sentiments) > 0 {
		sb.WriteString("\nAggregated Sentiment:\n")
		for _, agg := range sentiments {
			covered[agg.Symbol] = true
			sb.WriteString(fmt.Sprintf("  %s: %.2f (%s), confidence %.2f, %d sources, %d mentions",
				agg.Symbol, agg.UnifiedSentiment, agg.SentimentLevel, agg.Confidence, agg.SourceCount, agg.TotalMentions))
			if agg.DivergenceDetected {
				sb.WriteString(fmt.Sprintf(", DIVERGENCE %.2f", agg.DivergenceScore))
			}
			sb.WriteString("\n")
			sb.WriteString("    breakdown:")
			for _, source := range agg.ProvidersUsed {
				sb.WriteString(fmt.Sprintf(" %s %.0f%%", source, agg.SourceBreakdown[source]))
			}
			sb.WriteString("\n")
		}
	}

	if len(confluences) > 0 {
		sb.WriteString("\nConfluence:\n")
		for _, score := range confluences {
			covered[score.Symbol] = true
			sb.WriteString(fmt.Sprintf("  %s: strength %.2f (%s), bias %+.2f, confidence %.2f, components %s\n",
				score.Symbol, score.ConfluenceScore, score.ConfluenceLevel, score.DirectionalBias,
				score.Confidence, strings.Join(score.ComponentsUsed, "+")))
		}
	}

	var missing []string
	for _, symbol := range symbols {
		if !covered[symbol] {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 {
		sb.WriteString("\nNo data available for: " + strings.Join(missing, ", ") + "\n")
	}
	if sb.Len() == 0 {
		return "No data available."
	}
	return sb.String()
}
