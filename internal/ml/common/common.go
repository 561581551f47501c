package common

import (
	"math"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/repository"
)

const (
	ModelKeyLogReg  = "direction-logreg"
	ModelKeyBoosted = "direction-boosted"

	// FeatureSpecVersion is bumped whenever the vector layout changes so a
	// stored artifact is never applied to a mismatched input.
	FeatureSpecVersion = 1
)

// FeatureNames describes the vector layout shared by training and inference.
var FeatureNames = []string{
	"confluence_score",
	"directional_bias",
	"bias_magnitude",
	"confidence",
}

// SnapshotVector builds the feature vector for a stored snapshot.
func SnapshotVector(s repository.Snapshot) []float64 {
	return vector(s.ConfluenceScore, s.DirectionalBias, s.Confidence)
}

// ScoreVector builds the feature vector for a live confluence score.
func ScoreVector(score *domain.ConfluenceScore) []float64 {
	return vector(score.ConfluenceScore, score.DirectionalBias, score.Confidence)
}

func vector(strength, bias, confidence float64) []float64 {
	return []float64{strength, bias, math.Abs(bias), confidence}
}

// TargetLabel maps a resolved snapshot to a binary up/down label. Snapshots
// without an outcome are excluded from training.
func TargetLabel(s repository.Snapshot) (float64, bool) {
	if s.ForwardReturn == nil {
		return 0, false
	}
	if *s.ForwardReturn > 0 {
		return 1, true
	}
	return 0, true
}

func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
