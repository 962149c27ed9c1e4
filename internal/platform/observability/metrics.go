package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_items_fetched_total",
		Help: "The total number of items returned by feed fetchers",
	}, []string{"feed_type"})

	ItemsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_items_ingested_total",
		Help: "The total number of new items persisted to the store",
	})

	FeedFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_feed_fetch_errors_total",
		Help: "The total number of failed feed fetches",
	}, []string{"feed_type"})

	FeedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_feed_fetch_duration_seconds",
		Help:    "Duration of a single feed fetch",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"feed_type"})

	ItemsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_items_scored_total",
		Help: "The total number of scored items by scoring backend",
	}, []string{"backend"})

	ModelLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_ranker_model_load_failures_total",
		Help: "Number of times the ranking model artifact could not be decoded",
	})

	InteractionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_interaction_events_total",
		Help: "The total number of interaction events appended to the log",
	}, []string{"event"})

	ItemsSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_digest_selected_items",
		Help: "Number of items selected for the last digest",
	})

	ThemeClusters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_theme_clusters",
		Help: "Number of clusters chosen by silhouette selection in the last computation",
	})

	ThemeSilhouette = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_theme_silhouette_score",
		Help: "Silhouette score of the chosen clustering",
	})

	ClusteringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_theme_clustering_duration_seconds",
		Help:    "Duration of embedding and k-means clustering",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	ThemeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_theme_cache_hits_total",
		Help: "Number of theme refreshes served from the cache",
	})

	// LLM request metrics
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_llm_requests_total",
		Help: "Total number of LLM requests",
	}, []string{"provider", "model", "task", "status"})

	LLMRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_llm_request_latency_seconds",
		Help:    "Latency of LLM requests by provider and task",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider", "model", "task"})

	LLMCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_llm_cache_hits_total",
		Help: "Number of LLM responses served from the in-memory cache",
	})

	CircuitBreakerOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_circuit_breaker_opens_total",
		Help: "Total number of times a circuit breaker opened",
	}, []string{"provider"})

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_embedding_requests_total",
		Help: "Total number of embedding requests",
	}, []string{"provider", "model", "status"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_embedding_latency_seconds",
		Help:    "Latency of embedding requests by provider",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider", "model"})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_embedding_fallbacks_total",
		Help: "Total number of embedding fallback events",
	}, []string{"from_provider", "to_provider"})

	DigestsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_digests_written_total",
		Help: "The total number of digest documents written",
	}, []string{"polished"})

	DigestWordCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_digest_word_count",
		Help: "Word count of the last digest document",
	})

	DigestsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_digest_posts_total",
		Help: "The total number of digests delivered to Telegram",
	}, []string{"status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_run_duration_seconds",
		Help:    "Duration of a batch run by mode",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"mode"})
)

// WriteTextfile dumps the default registry in the node-exporter textfile format.
// An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
