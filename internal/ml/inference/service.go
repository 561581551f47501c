package inference

import (
	"context"
	"fmt"
	"sync"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/ml/common"
	"tickerpulse/internal/ml/models/boosted"
	"tickerpulse/internal/ml/models/logreg"
	"tickerpulse/internal/ml/registry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Forecast is the blended model view of a confluence score.
type Forecast struct {
	Symbol      string  `json:"symbol"`
	ProbUp      float64 `json:"prob_up"`
	Direction   string  `json:"direction"`
	LogRegProb  float64 `json:"logreg_prob"`
	BoostedProb float64 `json:"boosted_prob"`
}

const (
	DirectionUp      = "up"
	DirectionDown    = "down"
	DirectionNeutral = "neutral"
)

// neutralBand keeps weak probabilities from being reported as a direction.
const neutralBand = 0.1

// ModelLoader fetches the promoted artifact for a model key.
type ModelLoader interface {
	GetActiveModel(ctx context.Context, modelKey string) (*registry.ModelVersion, error)
}

// Service serves direction forecasts from the promoted model versions. Models
// are cached until Reload is called; the training job calls Reload after a
// promotion.
type Service struct {
	loader ModelLoader
	tracer trace.Tracer
	log    zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	lr     *logreg.Model
	boost  *boosted.Model
}

func NewService(loader ModelLoader, tracer trace.Tracer, log zerolog.Logger) *Service {
	return &Service{loader: loader, tracer: tracer, log: log}
}

// Predict blends the promoted models over the score's feature vector. Returns
// (nil, nil) when no model has been promoted yet.
func (s *Service) Predict(ctx context.Context, score *domain.ConfluenceScore) (*Forecast, error) {
	ctx, span := s.tracer.Start(ctx, "ml-inference.predict")
	defer span.End()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	lr, boost := s.lr, s.boost
	s.mu.RUnlock()
	if lr == nil && boost == nil {
		return nil, nil
	}

	x := common.ScoreVector(score)
	forecast := &Forecast{Symbol: score.Symbol, LogRegProb: 0.5, BoostedProb: 0.5}

	var sum float64
	var models int
	if lr != nil {
		forecast.LogRegProb = lr.PredictProb(x)
		sum += forecast.LogRegProb
		models++
	}
	if boost != nil {
		forecast.BoostedProb = boost.PredictProb(x)
		sum += forecast.BoostedProb
		models++
	}
	forecast.ProbUp = sum / float64(models)

	switch {
	case forecast.ProbUp >= 0.5+neutralBand:
		forecast.Direction = DirectionUp
	case forecast.ProbUp <= 0.5-neutralBand:
		forecast.Direction = DirectionDown
	default:
		forecast.Direction = DirectionNeutral
	}
	return forecast, nil
}

// Reload drops the cached models so the next prediction picks up freshly
// promoted versions.
func (s *Service) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.lr = nil
	s.boost = nil
	s.mu.Unlock()
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	lrVersion, err := s.loader.GetActiveModel(ctx, common.ModelKeyLogReg)
	if err != nil {
		return fmt.Errorf("load active logreg: %w", err)
	}
	if lrVersion != nil {
		model, err := logreg.UnmarshalBinary(lrVersion.ArtifactBlob)
		if err != nil {
			s.log.Warn().Err(err).Int("version", lrVersion.Version).Msg("logreg artifact rejected")
		} else {
			s.lr = model
		}
	}

	bVersion, err := s.loader.GetActiveModel(ctx, common.ModelKeyBoosted)
	if err != nil {
		return fmt.Errorf("load active boosted: %w", err)
	}
	if bVersion != nil {
		model, err := boosted.UnmarshalBinary(bVersion.ArtifactBlob)
		if err != nil {
			s.log.Warn().Err(err).Int("version", bVersion.Version).Msg("boosted artifact rejected")
		} else {
			s.boost = model
		}
	}

	s.loaded = true
	return nil
}
