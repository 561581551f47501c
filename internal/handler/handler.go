package handler

import (
	"context"

	"tickerpulse/internal/confluence"
	"tickerpulse/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// SentimentService is the aggregator surface the API exposes.
type SentimentService interface {
	GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error)
	GetSourceSentiments(ctx context.Context, symbol string, hours int) map[string]*domain.SourceSentiment
	Sources() []string
}

// ConfluenceService scores one symbol end to end, market data included.
type ConfluenceService interface {
	Score(ctx context.Context, symbol string, hours int, opts *confluence.Options) (*domain.ConfluenceScore, error)
}

// ScanRunner runs one watchlist scan cycle on demand.
type ScanRunner interface {
	RunScan(ctx context.Context) ([]domain.ConfluenceScore, error)
}

// ProviderLister reports the registered sources and their availability.
type ProviderLister interface {
	Names() []string
}

type Handler struct {
	tracer     trace.Tracer
	sentiment  SentimentService
	confluence ConfluenceService
	scanner    ScanRunner
	providers  ProviderLister
}

func New(tracer trace.Tracer, sentiment SentimentService, confluenceSvc ConfluenceService, scanner ScanRunner, providers ProviderLister) *Handler {
	return &Handler{
		tracer:     tracer,
		sentiment:  sentiment,
		confluence: confluenceSvc,
		scanner:    scanner,
		providers:  providers,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/sentiment/:symbol", h.GetSentiment)
	api.GET("/sentiment/:symbol/sources", h.GetSourceSentiments)
	api.GET("/confluence/:symbol", h.GetConfluence)
	api.GET("/providers", h.ListProviders)
	api.POST("/scan/run", h.TriggerScan)
}
