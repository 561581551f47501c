package inference

import (
	"context"
	"testing"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/ml/common"
	"tickerpulse/internal/ml/models/logreg"
	"tickerpulse/internal/ml/registry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type fakeLoader struct {
	models map[string]*registry.ModelVersion
	calls  int
}

func (f *fakeLoader) GetActiveModel(_ context.Context, key string) (*registry.ModelVersion, error) {
	f.calls++
	return f.models[key], nil
}

// trainedLogRegBlob trains a model where directional bias drives the label.
func trainedLogRegBlob(t *testing.T) []byte {
	t.Helper()
	var x [][]float64
	var y []float64
	for i := 0; i < 100; i++ {
		bias := 0.5 + float64(i%5)*0.05
		x = append(x, []float64{bias, bias, bias, 0.8})
		y = append(y, 1)
		x = append(x, []float64{bias, -bias, bias, 0.8})
		y = append(y, 0)
	}
	m, err := logreg.Train(x, y, common.FeatureNames, logreg.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train fixture: %v", err)
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return blob
}

func newTestInference(loader ModelLoader) *Service {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewService(loader, tracer, zerolog.Nop())
}

func TestPredictNilWithoutPromotedModels(t *testing.T) {
	svc := newTestInference(&fakeLoader{models: map[string]*registry.ModelVersion{}})
	forecast, err := svc.Predict(context.Background(), &domain.ConfluenceScore{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forecast != nil {
		t.Fatalf("expected nil forecast, got %+v", forecast)
	}
}

func TestPredictDirections(t *testing.T) {
	loader := &fakeLoader{models: map[string]*registry.ModelVersion{
		common.ModelKeyLogReg: {ModelKey: common.ModelKeyLogReg, Version: 1, ArtifactBlob: trainedLogRegBlob(t)},
	}}
	svc := newTestInference(loader)

	up, err := svc.Predict(context.Background(), &domain.ConfluenceScore{
		Symbol: "AAPL", ConfluenceScore: 0.7, DirectionalBias: 0.7, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up.Direction != DirectionUp {
		t.Fatalf("bullish score direction = %s (prob %v), want up", up.Direction, up.ProbUp)
	}

	down, err := svc.Predict(context.Background(), &domain.ConfluenceScore{
		Symbol: "AAPL", ConfluenceScore: 0.7, DirectionalBias: -0.7, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if down.Direction != DirectionDown {
		t.Fatalf("bearish score direction = %s (prob %v), want down", down.Direction, down.ProbUp)
	}
}

func TestPredictCachesModelsUntilReload(t *testing.T) {
	loader := &fakeLoader{models: map[string]*registry.ModelVersion{
		common.ModelKeyLogReg: {ModelKey: common.ModelKeyLogReg, Version: 1, ArtifactBlob: trainedLogRegBlob(t)},
	}}
	svc := newTestInference(loader)
	score := &domain.ConfluenceScore{Symbol: "AAPL", ConfluenceScore: 0.5, DirectionalBias: 0.5, Confidence: 0.8}

	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(context.Background(), score); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("loader called %d times, want 2 (one per model key)", loader.calls)
	}

	svc.Reload()
	if _, err := svc.Predict(context.Background(), score); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls != 4 {
		t.Fatalf("loader called %d times after reload, want 4", loader.calls)
	}
}
