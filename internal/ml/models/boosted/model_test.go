package boosted

import "testing"

func dataset() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		offset := float64(i%6) * 0.05
		x = append(x, []float64{0.8 + offset, 0.5 + offset})
		y = append(y, 1)
		x = append(x, []float64{-0.8 - offset, 0.5 - offset})
		y = append(y, 0)
	}
	return x, y
}

func TestTrainAndPredict(t *testing.T) {
	x, y := dataset()
	m, err := Train(x, y, []string{"bias", "conf"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := m.PredictProb([]float64{0.9, 0.6}); p < 0.6 {
		t.Fatalf("positive sample prob = %v, want > 0.6", p)
	}
	if p := m.PredictProb([]float64{-0.9, 0.4}); p > 0.4 {
		t.Fatalf("negative sample prob = %v, want < 0.4", p)
	}
}

func TestTrainRejectsSingleClass(t *testing.T) {
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	y := []float64{1, 1, 1}
	if _, err := Train(x, y, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for single-class dataset")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	x, y := dataset()
	m, err := Train(x, y, []string{"bias", "conf"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sample := []float64{0.7, 0.55}
	if m.PredictProb(sample) != restored.PredictProb(sample) {
		t.Fatal("restored model predicts differently")
	}
}
