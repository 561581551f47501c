package training

import (
	"context"
	"math"
	"testing"
	"time"

	"tickerpulse/internal/ml/registry"
	"tickerpulse/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type fakeSnapshots struct {
	rows []repository.Snapshot
	err  error
}

func (f *fakeSnapshots) TrainingSnapshots(context.Context, int) ([]repository.Snapshot, error) {
	return f.rows, f.err
}

type fakeRegistry struct {
	versions map[string]int
	inserted []registry.ModelVersion
	active   map[string]*registry.ModelVersion
	promoted map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		versions: map[string]int{},
		active:   map[string]*registry.ModelVersion{},
		promoted: map[string]int{},
	}
}

func (f *fakeRegistry) NextVersion(_ context.Context, key string) (int, error) {
	return f.versions[key] + 1, nil
}

func (f *fakeRegistry) InsertModelVersion(_ context.Context, m registry.ModelVersion) (*registry.ModelVersion, error) {
	f.versions[m.ModelKey] = m.Version
	f.inserted = append(f.inserted, m)
	return &m, nil
}

func (f *fakeRegistry) GetActiveModel(_ context.Context, key string) (*registry.ModelVersion, error) {
	return f.active[key], nil
}

func (f *fakeRegistry) ActivateModel(_ context.Context, key string, version int) error {
	f.promoted[key] = version
	return nil
}

// trainingRows builds snapshots where a positive bias reliably precedes a
// positive forward return.
func trainingRows(n int) []repository.Snapshot {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]repository.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		bias := 0.6 + float64(i%4)*0.05
		ret := 0.02
		if i%2 == 1 {
			bias = -bias
			ret = -0.02
		}
		r := ret
		rows = append(rows, repository.Snapshot{
			ID:              int64(i + 1),
			Symbol:          "AAPL",
			ObservedAt:      base.Add(time.Duration(i) * time.Hour),
			ConfluenceScore: math.Abs(bias),
			DirectionalBias: bias,
			Confidence:      0.8,
			ForwardReturn:   &r,
		})
	}
	return rows
}

func newTestService(rows []repository.Snapshot, reg ModelRegistry) *Service {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewService(&fakeSnapshots{rows: rows}, reg, Config{MinTrainSamples: 50}, tracer, zerolog.Nop())
}

func TestRunTrainingTrainsAndPromotesBothModels(t *testing.T) {
	reg := newFakeRegistry()
	svc := newTestService(trainingRows(400), reg)

	results, err := svc.RunTraining(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Version != 1 {
			t.Fatalf("%s version = %d, want 1", r.ModelKey, r.Version)
		}
		if !r.Promoted {
			t.Fatalf("%s not promoted on first training", r.ModelKey)
		}
		if r.AUC < 0.9 {
			t.Fatalf("%s AUC = %v on a separable dataset, want >= 0.9", r.ModelKey, r.AUC)
		}
	}
	if len(reg.inserted) != 2 {
		t.Fatalf("inserted %d versions, want 2", len(reg.inserted))
	}
}

func TestRunTrainingRequiresMinimumSamples(t *testing.T) {
	svc := newTestService(trainingRows(20), newFakeRegistry())
	if _, err := svc.RunTraining(context.Background()); err == nil {
		t.Fatal("expected error for too few resolved snapshots")
	}
}

func TestRunTrainingSkipsPromotionBelowMargin(t *testing.T) {
	reg := newFakeRegistry()
	reg.active["direction-logreg"] = &registry.ModelVersion{
		ModelKey:    "direction-logreg",
		Version:     3,
		MetricsJSON: `{"auc": 0.999}`,
		IsActive:    true,
	}
	reg.versions["direction-logreg"] = 3
	svc := newTestService(trainingRows(400), reg)

	results, err := svc.RunTraining(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Promoted {
		t.Fatal("new version must not outrank a near-perfect active model")
	}
}

func TestComputeAUC(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	perfect := []float64{0.9, 0.8, 0.2, 0.1}
	if auc := computeAUC(labels, perfect); auc != 1 {
		t.Fatalf("perfect ranking auc = %v, want 1", auc)
	}
	inverted := []float64{0.1, 0.2, 0.8, 0.9}
	if auc := computeAUC(labels, inverted); auc != 0 {
		t.Fatalf("inverted ranking auc = %v, want 0", auc)
	}
	tied := []float64{0.5, 0.5, 0.5, 0.5}
	if auc := computeAUC(labels, tied); auc != 0.5 {
		t.Fatalf("all-tied auc = %v, want 0.5", auc)
	}
}
