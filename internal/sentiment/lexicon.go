package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"

	"tickerpulse/internal/provider"
)

// LexiconScorer scores text against financial sentiment word lists in the
// Loughran-McDonald tradition, extended with trader slang. It needs no
// network and serves as the always-available fallback behind the LLM scorer.
type LexiconScorer struct {
	bullish   map[string]bool
	bearish   map[string]bool
	negators  map[string]bool
	uncertain map[string]bool
}

func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		bullish:   wordSet(bullishWords),
		bearish:   wordSet(bearishWords),
		negators:  wordSet(negatorWords),
		uncertain: wordSet(uncertaintyWords),
	}
}

// ScoreItems scores each item individually and combines them with engagement
// weighting: an item's weight is 1 + log10(1 + engagement), capped at 2, so
// a viral post counts at most twice a silent one.
func (s *LexiconScorer) ScoreItems(_ context.Context, _ string, items []provider.TextItem) (float64, float64, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	var weightedSum, totalWeight float64
	matched := 0
	for _, item := range items {
		score, hit := s.scoreText(item.Text)
		if hit {
			matched++
		}
		weight := 1 + math.Log10(1+math.Max(item.Engagement, 0))
		if weight > 2 {
			weight = 2
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	score := weightedSum / totalWeight

	// Confidence grows with how much of the text actually matched the
	// lexicon and with sample size.
	matchRatio := float64(matched) / float64(len(items))
	volume := math.Min(math.Log10(1+float64(len(items)))/math.Log10(51), 1)
	confidence := clamp(0.25+0.45*matchRatio+0.3*volume, 0, 0.9)

	return clamp(score, -1, 1), confidence, nil
}

// scoreText scores one piece of text. The bool reports whether any sentiment
// word matched at all.
func (s *LexiconScorer) scoreText(text string) (float64, bool) {
	words := tokenize(strings.ToLower(text))
	if len(words) == 0 {
		return 0, false
	}

	var bull, bear, uncertain int
	for i, word := range words {
		negated := i > 0 && s.negators[words[i-1]]
		switch {
		case s.bullish[word]:
			if negated {
				bear++
			} else {
				bull++
			}
		case s.bearish[word]:
			if negated {
				bull++
			} else {
				bear++
			}
		case s.uncertain[word]:
			uncertain++
		}
	}

	total := bull + bear
	if total == 0 {
		return 0, false
	}
	raw := float64(bull-bear) / float64(total+1)

	// Hedging language dilutes the signal.
	hedge := math.Min(float64(uncertain)/float64(len(words))*20, 1)
	raw *= 1 - 0.5*hedge

	return clamp(raw, -1, 1), true
}

func tokenize(text string) []string {
	var words []string
	var current strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

func wordSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var bullishWords = []string{
	"achieve", "beat", "benefit", "breakout", "bull", "bullish", "buy",
	"calls", "competitive", "enhance", "excellent", "exceptional",
	"favorable", "gain", "gains", "good", "great", "grew", "growth",
	"improve", "improved", "improvement", "increasing", "innovation",
	"leader", "leading", "long", "moon", "opportunity", "optimistic",
	"outperform", "positive", "profitable", "progress", "rally", "rebound",
	"record", "recover", "recovery", "rip", "robust", "rocket", "soar",
	"solid", "squeeze", "strength", "strong", "succeed", "success",
	"successful", "superior", "surge", "surpass", "undervalued", "upgrade",
	"upside", "uptrend", "winning",
}

var bearishWords = []string{
	"abandon", "adverse", "avoid", "bagholder", "bear", "bearish",
	"bankruptcy", "challenge", "challenging", "concern", "concerns",
	"crash", "crisis", "cut", "damage", "decline", "decrease", "deficit",
	"deteriorate", "difficult", "disappoint", "disappointing", "dilution",
	"downgrade", "downside", "downturn", "downtrend", "drop", "dump",
	"erode", "fail", "failure", "falling", "fear", "fraud", "headwind",
	"impair", "impairment", "inadequate", "investigation", "lawsuit",
	"layoffs", "loss", "losses", "miss", "missed", "negative", "obstacle",
	"overvalued", "plunge", "poor", "problem", "puts", "recession", "risk",
	"risks", "sell", "selloff", "short", "slowdown", "tank", "trash",
	"underperform", "unfavorable", "unprofitable", "weak", "weakness",
	"worse", "worsen", "worst",
}

var negatorWords = []string{
	"no", "not", "never", "without", "hardly", "barely", "isnt", "wasnt",
	"wont", "dont", "didnt", "cant", "couldnt", "shouldnt", "wouldnt",
}

var uncertaintyWords = []string{
	"almost", "anticipate", "appear", "approximately", "assume", "believe",
	"could", "depend", "estimate", "expect", "forecast", "if", "likely",
	"may", "maybe", "might", "pending", "perhaps", "possible", "possibly",
	"potential", "predict", "probably", "should", "somewhat", "suggest",
	"uncertain", "uncertainty", "unclear", "unlikely", "would",
}
