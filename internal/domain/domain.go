package domain

import (
	"regexp"
	"strings"
	"time"
)

// SentimentLevel is the categorical bucket for a [-1,1] sentiment score.
type SentimentLevel string

const (
	LevelVeryBearish SentimentLevel = "very_bearish"
	LevelBearish     SentimentLevel = "bearish"
	LevelNeutral     SentimentLevel = "neutral"
	LevelBullish     SentimentLevel = "bullish"
	LevelVeryBullish SentimentLevel = "very_bullish"
)

// ConfluenceLevel is the categorical bucket for a [0,1] confluence strength.
type ConfluenceLevel string

const (
	ConfluenceVeryLow  ConfluenceLevel = "very_low"
	ConfluenceLow      ConfluenceLevel = "low"
	ConfluenceModerate ConfluenceLevel = "moderate"
	ConfluenceHigh     ConfluenceLevel = "high"
	ConfluenceVeryHigh ConfluenceLevel = "very_high"
)

type VolumeTrend string

const (
	VolumeTrendUp     VolumeTrend = "up"
	VolumeTrendDown   VolumeTrend = "down"
	VolumeTrendStable VolumeTrend = "stable"
)

// Source name keys. Every provider registers under exactly one of these.
const (
	SourceTwitter     = "twitter"
	SourceReddit      = "reddit"
	SourceStockTwits  = "stocktwits"
	SourceNews        = "news"
	SourceTrends      = "google_trends"
	SourceAnalyst     = "analyst_ratings"
	SourceInsider     = "insider_trading"
	SourceDarkPool    = "dark_pool"
	SourceOptionsFlow = "options_flow"
)

// SourceSentiment is one source's reading for one symbol at one point in time.
// Score and Confidence are clamped to their declared ranges before the value
// is handed to anyone else.
type SourceSentiment struct {
	Source       string         `json:"source"`
	Symbol       string         `json:"symbol"`
	Score        float64        `json:"score"`
	Confidence   float64        `json:"confidence"`
	Mentions     int            `json:"mentions"`
	Timestamp    time.Time      `json:"timestamp"`
	Level        SentimentLevel `json:"level"`
	SourceWeight float64        `json:"source_weight"`
	VolumeTrend  VolumeTrend    `json:"volume_trend"`
}

// AggregatedSentiment is the per-symbol, per-request output of the Aggregator.
// Immutable once created.
type AggregatedSentiment struct {
	Symbol             string                     `json:"symbol"`
	Timestamp          time.Time                  `json:"timestamp"`
	UnifiedSentiment   float64                    `json:"unified_sentiment"`
	Confidence         float64                    `json:"confidence"`
	SentimentLevel     SentimentLevel             `json:"sentiment_level"`
	SourceCount        int                        `json:"source_count"`
	TotalMentions      int                        `json:"total_mentions"`
	ProvidersUsed      []string                   `json:"providers_used"`
	DivergenceDetected bool                       `json:"divergence_detected"`
	DivergenceScore    float64                    `json:"divergence_score"`
	VolumeTrend        VolumeTrend                `json:"volume_trend"`
	SourceBreakdown    map[string]float64         `json:"source_breakdown"`
	Sources            map[string]SourceSentiment `json:"sources"`
}

// TechnicalScore is one symbol's price-action snapshot. The overall score is
// a fixed weighted combination of the four sub-scores, all in [-1,1].
type TechnicalScore struct {
	OverallScore   float64            `json:"overall_score"`
	RSIScore       float64            `json:"rsi_score"`
	SMATrendScore  float64            `json:"sma_trend_score"`
	VolumeScore    float64            `json:"volume_score"`
	BollingerScore float64            `json:"bollinger_score"`
	Indicators     map[string]float64 `json:"indicators"`
}

// ConfluenceComponent records one component's contribution to a confluence
// score: its signed directional score, the renormalized weight applied to it,
// its strength contribution (|score| x weight) and its confidence.
type ConfluenceComponent struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Confidence   float64 `json:"confidence"`
}

// ConfluenceBreakdown carries per-component contributions plus the raw inputs
// they were derived from, for diagnostics.
type ConfluenceBreakdown struct {
	Components  map[string]ConfluenceComponent `json:"components"`
	Technical   *TechnicalScore                `json:"technical,omitempty"`
	Sentiment   *AggregatedSentiment           `json:"sentiment,omitempty"`
	OptionsFlow *SourceSentiment               `json:"options_flow,omitempty"`
}

// ConfluenceScore is the final decision artifact for one symbol.
// ConfluenceScore measures agreement strength in [0,1]; DirectionalBias
// carries the direction in [-1,1]. The two are computed with the same weights
// but are independent quantities.
type ConfluenceScore struct {
	Symbol                string              `json:"symbol"`
	Timestamp             time.Time           `json:"timestamp"`
	ConfluenceScore       float64             `json:"confluence_score"`
	DirectionalBias       float64             `json:"directional_bias"`
	ConfluenceLevel       ConfluenceLevel     `json:"confluence_level"`
	Breakdown             ConfluenceBreakdown `json:"breakdown"`
	ComponentsUsed        []string            `json:"components_used"`
	Confidence            float64             `json:"confidence"`
	MeetsMinimumThreshold bool                `json:"meets_minimum_threshold"`
	MeetsHighThreshold    bool                `json:"meets_high_threshold"`
}

// LevelFromScore buckets a [-1,1] sentiment score.
func LevelFromScore(score float64) SentimentLevel {
	switch {
	case score <= -0.6:
		return LevelVeryBearish
	case score <= -0.2:
		return LevelBearish
	case score < 0.2:
		return LevelNeutral
	case score < 0.6:
		return LevelBullish
	default:
		return LevelVeryBullish
	}
}

// ConfluenceLevelFromScore buckets a [0,1] confluence strength. Boundaries are
// inclusive on the lower bound: 0.3 is low, 0.85 is very_high.
func ConfluenceLevelFromScore(score float64) ConfluenceLevel {
	switch {
	case score < 0.3:
		return ConfluenceVeryLow
	case score < 0.5:
		return ConfluenceLow
	case score < 0.7:
		return ConfluenceModerate
	case score < 0.85:
		return ConfluenceHigh
	default:
		return ConfluenceVeryHigh
	}
}

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

// NormalizeSymbol upper-cases and validates an equity ticker. The second
// return is false for malformed symbols.
func NormalizeSymbol(symbol string) (string, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return "", false
	}
	return symbol, true
}

// DefaultWatchlist is the symbol set scanned by the background job when no
// watchlist is configured.
var DefaultWatchlist = []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOGL", "META", "AMD", "SPY", "QQQ"}
