package boosted

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"

	"tickerpulse/internal/ml/common"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Rounds: 40, LearningRate: 0.08, MaxDepth: 4}
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Model wraps a gradient-boosted binary classifier.
type Model struct {
	featureNames []string
	boost        *boo.MultiClass
}

func Train(samples [][]float64, labels []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}

	intLabels := make([]int, len(labels))
	seen := make(map[int]struct{}, 2)
	for i, v := range labels {
		label := 0
		if v >= 0.5 {
			label = 1
		}
		intLabels[i] = label
		seen[label] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, errors.New("training set needs both classes")
	}

	defaults := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = defaults.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaults.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = make([]string, len(samples[0]))
		for i := range featureNames {
			featureNames[i] = "f"
		}
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	model := boo.NewMultiClass(&utils.DataBunch{
		Data:   samples,
		Labels: intLabels,
		Keys:   featureNames,
	}, o)
	if model == nil {
		return nil, errors.New("boosted training failed")
	}
	return &Model{featureNames: append([]string(nil), featureNames...), boost: model}, nil
}

// PredictProb returns P(label=1).
func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || m.boost == nil {
		return 0.5
	}
	probs := m.boost.PredictSingle(sample)
	labels := m.boost.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return common.Clamp01(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return common.Clamp01(probs[len(probs)-1])
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.PredictProb(samples[i])
	}
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{FeatureNames: m.featureNames, ModelText: buf.String()})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	model, err := boo.UnJSONMultiClass(bufio.NewReader(bytes.NewReader([]byte(a.ModelText))))
	if err != nil {
		return nil, err
	}
	return &Model{featureNames: append([]string(nil), a.FeatureNames...), boost: model}, nil
}
