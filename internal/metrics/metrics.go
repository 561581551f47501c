package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the engine's Prometheus metrics. All methods are safe for
// concurrent use.
type Recorder struct {
	aggregations   *prometheus.CounterVec
	sourceResults  *prometheus.CounterVec
	divergences    prometheus.Counter
	confluences    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	unifiedScore   *prometheus.GaugeVec
	confluenceGage *prometheus.GaugeVec
}

func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics on reg. Tests use it with a fresh
// registry to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		aggregations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_aggregations_total",
				Help: "Sentiment aggregation runs by outcome",
			},
			[]string{"outcome"},
		),
		sourceResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_source_results_total",
				Help: "Per-source provider fetch results",
			},
			[]string{"source", "result"},
		),
		divergences: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tickerpulse_divergences_total",
				Help: "Aggregations where source divergence crossed the threshold",
			},
		),
		confluences: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_confluence_scores_total",
				Help: "Confluence calculations by resulting level",
			},
			[]string{"level"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_cache_lookups_total",
				Help: "Cache lookups by layer and result",
			},
			[]string{"layer", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickerpulse_operation_duration_seconds",
				Help:    "Duration of scoring operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		unifiedScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickerpulse_unified_sentiment",
				Help: "Most recent unified sentiment per symbol",
			},
			[]string{"symbol"},
		),
		confluenceGage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickerpulse_confluence_score",
				Help: "Most recent confluence score per symbol",
			},
			[]string{"symbol"},
		),
	}
}

func (r *Recorder) RecordAggregation(outcome string) {
	r.aggregations.WithLabelValues(outcome).Inc()
}

// RecordSourceResult records one provider fetch. result is one of
// "success", "error", "no_data", "skipped".
func (r *Recorder) RecordSourceResult(source, result string) {
	r.sourceResults.WithLabelValues(source, result).Inc()
}

func (r *Recorder) RecordDivergence() {
	r.divergences.Inc()
}

func (r *Recorder) RecordConfluence(level string) {
	r.confluences.WithLabelValues(level).Inc()
}

func (r *Recorder) RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(layer, result).Inc()
}

func (r *Recorder) RecordDuration(op string, seconds float64) {
	r.duration.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordUnifiedSentiment(symbol string, score float64) {
	r.unifiedScore.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) RecordConfluenceScore(symbol string, score float64) {
	r.confluenceGage.WithLabelValues(symbol).Set(score)
}
