package provider

import (
	"context"
	"math"
	"strings"
	"time"

	"tickerpulse/internal/domain"
)

const defaultUserAgent = "tickerpulse/1.0 (sentiment aggregation)"

// SourceSentimentProvider is the contract every sentiment source implements.
// GetSentiment returns (nil, nil) when the source has no data for the symbol
// in the requested window; that is not an error.
type SourceSentimentProvider interface {
	Name() string
	IsAvailable() bool
	GetSentiment(ctx context.Context, symbol string, hours int) (*domain.SourceSentiment, error)
}

// TextItem is one piece of source text handed to a scorer, with an engagement
// signal (likes, upvotes, comments) used to weight it.
type TextItem struct {
	Text       string
	Engagement float64
	Timestamp  time.Time
}

// TextScorer turns a batch of text items into a single score in [-1, 1] and a
// confidence in [0, 1].
type TextScorer interface {
	ScoreItems(ctx context.Context, symbol string, items []TextItem) (score, confidence float64, err error)
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

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.ReplaceAll(in, "\n", " ")
	in = strings.ReplaceAll(in, "\r", " ")
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		in = in[:maxLen]
	}
	return in
}

// confidenceFromMentions scales confidence with sample size: 0 mentions is 0,
// 50+ mentions approaches full confidence.
func confidenceFromMentions(mentions int, base float64) float64 {
	if mentions <= 0 {
		return 0
	}
	volume := math.Log10(1+float64(mentions)) / math.Log10(51)
	return clamp(base*math.Min(volume, 1), 0, 1)
}

// volumeTrendFromTimestamps compares activity in the second half of the
// window against the first half.
func volumeTrendFromTimestamps(times []time.Time, now time.Time, hours int) domain.VolumeTrend {
	if len(times) < 4 || hours <= 0 {
		return domain.VolumeTrendStable
	}
	mid := now.Add(-time.Duration(hours) * time.Hour / 2)
	var early, late float64
	for _, ts := range times {
		if ts.Before(mid) {
			early++
		} else {
			late++
		}
	}
	if early == 0 {
		return domain.VolumeTrendUp
	}
	ratio := late / early
	switch {
	case ratio > 1.25:
		return domain.VolumeTrendUp
	case ratio < 0.8:
		return domain.VolumeTrendDown
	default:
		return domain.VolumeTrendStable
	}
}
