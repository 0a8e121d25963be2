// Package metrics provides Prometheus metrics export for the review
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports review pipeline metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Pipeline metrics
	generations   *prometheus.CounterVec // outcome: cached, generated, failed
	stageLatency  *prometheus.HistogramVec
	ingests       *prometheus.CounterVec // outcome: stored, failed
	ingestLatency prometheus.Histogram

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// LLM token metrics
	llmTokensUsed *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates a new Prometheus exporter.
func NewExporter(cfg Config) *Exporter {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := cfg.LatencyBuckets
	if len(buckets) == 0 {
		buckets = DefaultConfig().LatencyBuckets
	}

	e := &Exporter{
		registry: registry,
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewsense_generations_total",
			Help: "Review generation requests by outcome",
		}, []string{"outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewsense_generation_stage_seconds",
			Help:    "Latency of generation pipeline stages",
			Buckets: buckets,
		}, []string{"stage"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewsense_ingests_total",
			Help: "Review submissions by outcome",
		}, []string{"outcome"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewsense_ingest_seconds",
			Help:    "Latency of review ingestion",
			Buckets: buckets,
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewsense_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewsense_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),
		llmTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewsense_llm_tokens_total",
			Help: "LLM tokens consumed by stage and kind",
		}, []string{"stage", "kind"}),
	}

	registry.MustRegister(
		e.generations,
		e.stageLatency,
		e.ingests,
		e.ingestLatency,
		e.cacheHits,
		e.cacheMisses,
		e.llmTokensUsed,
	)

	return e
}

// RecordGeneration records a generation outcome: cached, generated, failed.
func (e *Exporter) RecordGeneration(outcome string) {
	e.generations.WithLabelValues(outcome).Inc()
}

// ObserveStage records the latency of one pipeline stage.
func (e *Exporter) ObserveStage(stage string, d time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordIngest records an ingestion outcome: stored, failed.
func (e *Exporter) RecordIngest(outcome string, d time.Duration) {
	e.ingests.WithLabelValues(outcome).Inc()
	e.ingestLatency.Observe(d.Seconds())
}

// RecordCacheHit records a hit for the named cache.
func (e *Exporter) RecordCacheHit(cache string) {
	e.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a miss for the named cache.
func (e *Exporter) RecordCacheMiss(cache string) {
	e.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordLLMTokens records token usage for one generation stage.
func (e *Exporter) RecordLLMTokens(stage string, promptTokens, completionTokens int) {
	e.llmTokensUsed.WithLabelValues(stage, "prompt").Add(float64(promptTokens))
	e.llmTokensUsed.WithLabelValues(stage, "completion").Add(float64(completionTokens))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
