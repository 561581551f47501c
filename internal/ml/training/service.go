package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"tickerpulse/internal/ml/common"
	"tickerpulse/internal/ml/models/boosted"
	"tickerpulse/internal/ml/models/logreg"
	"tickerpulse/internal/ml/registry"
	"tickerpulse/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotSource supplies resolved confluence snapshots, oldest first.
type SnapshotSource interface {
	TrainingSnapshots(ctx context.Context, limit int) ([]repository.Snapshot, error)
}

// ModelRegistry stores trained artifacts and tracks the promoted version.
type ModelRegistry interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	InsertModelVersion(ctx context.Context, m registry.ModelVersion) (*registry.ModelVersion, error)
	GetActiveModel(ctx context.Context, modelKey string) (*registry.ModelVersion, error)
	ActivateModel(ctx context.Context, modelKey string, version int) error
}

type Config struct {
	MinTrainSamples int
	MaxSnapshots    int
	// PromoteMargin is the AUC improvement a new version must show over the
	// active one before it is promoted.
	PromoteMargin float64
}

type ModelTrainResult struct {
	ModelKey     string
	Version      int
	SampleCount  int
	TestCount    int
	AUC          float64
	Promoted     bool
	PromoteError error
}

// Service trains the direction classifiers on resolved confluence snapshots.
type Service struct {
	snapshots SnapshotSource
	registry  ModelRegistry
	cfg       Config
	tracer    trace.Tracer
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(snapshots SnapshotSource, reg ModelRegistry, cfg Config, tracer trace.Tracer, log zerolog.Logger) *Service {
	if cfg.MinTrainSamples <= 0 {
		cfg.MinTrainSamples = 200
	}
	if cfg.MaxSnapshots <= 0 {
		cfg.MaxSnapshots = 20000
	}
	if cfg.PromoteMargin <= 0 {
		cfg.PromoteMargin = 0.01
	}
	return &Service{
		snapshots: snapshots,
		registry:  reg,
		cfg:       cfg,
		tracer:    tracer,
		log:       log,
		now:       time.Now,
	}
}

// RunTraining trains both models on a chronological split and promotes each
// version that beats the active one on held-out AUC.
func (s *Service) RunTraining(ctx context.Context) ([]ModelTrainResult, error) {
	ctx, span := s.tracer.Start(ctx, "ml-training.run")
	defer span.End()

	rows, err := s.snapshots.TrainingSnapshots(ctx, s.cfg.MaxSnapshots)
	if err != nil {
		return nil, fmt.Errorf("load training snapshots: %w", err)
	}

	samples := make([][]float64, 0, len(rows))
	labels := make([]float64, 0, len(rows))
	var trainedFrom, trainedTo time.Time
	for _, row := range rows {
		label, ok := common.TargetLabel(row)
		if !ok {
			continue
		}
		samples = append(samples, common.SnapshotVector(row))
		labels = append(labels, label)
		if trainedFrom.IsZero() || row.ObservedAt.Before(trainedFrom) {
			trainedFrom = row.ObservedAt
		}
		if row.ObservedAt.After(trainedTo) {
			trainedTo = row.ObservedAt
		}
	}
	if len(samples) < s.cfg.MinTrainSamples {
		return nil, fmt.Errorf("not enough resolved snapshots: got %d, need %d", len(samples), s.cfg.MinTrainSamples)
	}

	trainX, trainY, testX, testY := chronologicalSplit(samples, labels)
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, errors.New("dataset split produced an empty partition")
	}

	results := make([]ModelTrainResult, 0, 2)

	lrOpts := logreg.DefaultTrainOptions()
	lrModel, err := logreg.Train(trainX, trainY, common.FeatureNames, lrOpts)
	if err != nil {
		return nil, fmt.Errorf("train logreg: %w", err)
	}
	lrResult, err := s.record(ctx, common.ModelKeyLogReg, "json/logreg-v1", lrModel, map[string]any{
		"learning_rate": lrOpts.LearningRate,
		"epochs":        lrOpts.Epochs,
		"l2":            lrOpts.L2,
	}, trainedFrom, trainedTo, testX, testY, len(samples))
	if err != nil {
		return nil, err
	}
	results = append(results, lrResult)

	bOpts := boosted.DefaultTrainOptions()
	bModel, err := boosted.Train(trainX, trainY, common.FeatureNames, bOpts)
	if err != nil {
		// A single-class window is a data condition, not a system failure.
		s.log.Warn().Err(err).Msg("boosted training skipped")
		return results, nil
	}
	bResult, err := s.record(ctx, common.ModelKeyBoosted, "json/boo-v1", bModel, map[string]any{
		"rounds":        bOpts.Rounds,
		"learning_rate": bOpts.LearningRate,
		"max_depth":     bOpts.MaxDepth,
	}, trainedFrom, trainedTo, testX, testY, len(samples))
	if err != nil {
		return nil, err
	}
	results = append(results, bResult)

	return results, nil
}

type predictor interface {
	PredictBatch(samples [][]float64) []float64
	MarshalBinary() ([]byte, error)
}

func (s *Service) record(
	ctx context.Context,
	modelKey, format string,
	model predictor,
	hyperparams map[string]any,
	trainedFrom, trainedTo time.Time,
	testX [][]float64,
	testY []float64,
	sampleCount int,
) (ModelTrainResult, error) {
	blob, err := model.MarshalBinary()
	if err != nil {
		return ModelTrainResult{}, fmt.Errorf("marshal %s: %w", modelKey, err)
	}
	metrics := computeMetrics(testY, model.PredictBatch(testX))

	version, err := s.registry.NextVersion(ctx, modelKey)
	if err != nil {
		return ModelTrainResult{}, err
	}
	hyperJSON, _ := json.Marshal(hyperparams)
	metricJSON, _ := json.Marshal(metrics)

	inserted, err := s.registry.InsertModelVersion(ctx, registry.ModelVersion{
		ModelKey:           modelKey,
		Version:            version,
		FeatureSpecVersion: common.FeatureSpecVersion,
		TrainedFrom:        trainedFrom,
		TrainedTo:          trainedTo,
		HyperparamsJSON:    string(hyperJSON),
		MetricsJSON:        string(metricJSON),
		ArtifactFormat:     format,
		ArtifactBlob:       blob,
	})
	if err != nil {
		return ModelTrainResult{}, err
	}

	result := ModelTrainResult{
		ModelKey:    modelKey,
		Version:     inserted.Version,
		SampleCount: sampleCount,
		TestCount:   len(testY),
		AUC:         metrics["auc"],
	}

	promote, promoteErr := s.shouldPromote(ctx, modelKey, metrics["auc"])
	if promoteErr != nil {
		result.PromoteError = promoteErr
		return result, nil
	}
	if promote {
		if err := s.registry.ActivateModel(ctx, modelKey, inserted.Version); err != nil {
			result.PromoteError = err
			return result, nil
		}
		result.Promoted = true
	}
	return result, nil
}

func (s *Service) shouldPromote(ctx context.Context, modelKey string, newAUC float64) (bool, error) {
	active, err := s.registry.GetActiveModel(ctx, modelKey)
	if err != nil {
		return false, err
	}
	if active == nil {
		return true, nil
	}
	var metrics map[string]float64
	if err := json.Unmarshal([]byte(active.MetricsJSON), &metrics); err != nil {
		return true, nil
	}
	activeAUC, ok := metrics["auc"]
	if !ok {
		return true, nil
	}
	return newAUC >= activeAUC+s.cfg.PromoteMargin, nil
}

// chronologicalSplit keeps the newest 25% as the held-out test partition. A
// random split would leak future regimes into training.
func chronologicalSplit(samples [][]float64, labels []float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(samples)
	cut := n * 3 / 4
	if cut < 1 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	return samples[:cut], labels[:cut], samples[cut:], labels[cut:]
}

func computeMetrics(labels, probs []float64) map[string]float64 {
	n := len(labels)
	if n == 0 || len(probs) != n {
		return map[string]float64{"auc": 0.5, "accuracy": 0, "brier": 0, "n_test": 0}
	}
	correct := 0.0
	brier := 0.0
	for i := 0; i < n; i++ {
		p := common.Clamp01(probs[i])
		pred := 0.0
		if p >= 0.5 {
			pred = 1
		}
		if pred == labels[i] {
			correct++
		}
		d := p - labels[i]
		brier += d * d
	}
	return map[string]float64{
		"auc":      computeAUC(labels, probs),
		"accuracy": correct / float64(n),
		"brier":    brier / float64(n),
		"n_test":   float64(n),
	}
}

// computeAUC is the rank-sum (Mann-Whitney) estimate with midrank handling
// for tied probabilities.
func computeAUC(labels, probs []float64) float64 {
	type pair struct{ p, y float64 }
	pairs := make([]pair, len(labels))
	pos, neg := 0.0, 0.0
	for i := range labels {
		pairs[i] = pair{p: common.Clamp01(probs[i]), y: labels[i]}
		if labels[i] >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	rankSumPos := 0.0
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].p == pairs[i].p {
			j++
		}
		midrank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			if pairs[k].y >= 0.5 {
				rankSumPos += midrank
			}
		}
		i = j
	}
	return (rankSumPos - pos*(pos+1)/2) / (pos * neg)
}
