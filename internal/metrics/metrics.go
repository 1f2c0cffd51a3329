package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tailoring request metrics
	TailorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_requests_total",
			Help: "Total number of tailoring requests",
		},
		[]string{"kind", "status"},
	)

	TailorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_request_duration_seconds",
			Help:    "End-to-end tailoring duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_stage_failures_total",
			Help: "Total number of pipeline stage failures handled by fallback",
		},
		[]string{"stage"},
	)

	// Retrieval metrics
	ChunksRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tailor_chunks_retrieved",
			Help:    "Chunks surviving relevance filtering per request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ChunksIncluded = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tailor_chunks_included",
			Help:    "Chunks included in the final context per request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	RerankFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_rerank_fallbacks_total",
			Help: "Times the bi-encoder score stood in for a failed cross-encoder",
		},
	)

	// Compression metrics
	CompressionLevels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_compression_levels_total",
			Help: "Chunks assigned to each compression level",
		},
		[]string{"level"},
	)

	CompressionSavings = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tailor_compression_savings_percent",
			Help:    "Token savings achieved by compression",
			Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
		},
	)

	SummaryFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_summary_fallbacks_total",
			Help: "Summaries replaced by truncated originals after summarizer failure",
		},
	)

	CompressionOverBudget = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_compression_over_budget_total",
			Help: "Compression runs that could not meet the token budget",
		},
	)

	// Quality metrics
	QualityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_quality_score",
			Help:    "Overall quality score (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"variant"},
	)

	// Web search metrics
	WebSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_web_search_total",
			Help: "Total number of web search provider calls",
		},
		[]string{"provider", "status"},
	)

	WebSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_web_search_latency_seconds",
			Help:    "Web search provider latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_page_cache_hits_total",
			Help: "Total number of web page cache hits",
		},
	)

	PageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_page_cache_misses_total",
			Help: "Total number of web page cache misses",
		},
	)

	PageCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_page_cache_evictions_total",
			Help: "Total number of pages evicted from the web page cache",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_sessions_created_total",
			Help: "Total number of tailoring sessions persisted",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_session_cache_hits_total",
			Help: "Total number of session cache hits",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_session_cache_misses_total",
			Help: "Total number of session cache misses",
		},
	)

	// Vector DB metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_vector_search_total",
			Help: "Total number of vector searches",
		},
		[]string{"collection", "status"},
	)

	VectorSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_vector_search_latency_seconds",
			Help:    "Vector search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_embedding_latency_seconds",
			Help:    "Embedding generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// LLM adapter metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_llm_requests_total",
			Help: "Total number of summarizer and reranker calls",
		},
		[]string{"operation", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_llm_latency_seconds",
			Help:    "Summarizer and reranker latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordTailorMetrics records metrics for a finished tailoring request
func RecordTailorMetrics(kind, status string, durationSeconds float64, chunksRetrieved, chunksIncluded int) {
	TailorRequests.WithLabelValues(kind, status).Inc()
	TailorDuration.WithLabelValues(kind).Observe(durationSeconds)
	ChunksRetrieved.Observe(float64(chunksRetrieved))
	if kind == "tailor" {
		ChunksIncluded.Observe(float64(chunksIncluded))
	}
}

// RecordStage records a stage duration and, when failed, a stage failure
func RecordStage(stage string, durationSeconds float64, failed bool) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if failed {
		StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordCompression records level counts and savings of one compression run
func RecordCompression(full, summary, keywords, dropped, savingsPercent int, overBudget bool) {
	CompressionLevels.WithLabelValues("full").Add(float64(full))
	CompressionLevels.WithLabelValues("summary").Add(float64(summary))
	CompressionLevels.WithLabelValues("keywords").Add(float64(keywords))
	CompressionLevels.WithLabelValues("drop").Add(float64(dropped))
	CompressionSavings.Observe(float64(savingsPercent))
	if overBudget {
		CompressionOverBudget.Inc()
	}
}

// RecordWebSearchMetrics records a single provider call
func RecordWebSearchMetrics(provider, status string, durationSeconds float64) {
	WebSearches.WithLabelValues(provider, status).Inc()
	if durationSeconds > 0 {
		WebSearchLatency.WithLabelValues(provider).Observe(durationSeconds)
	}
}

// RecordVectorSearchMetrics records vector search metrics
func RecordVectorSearchMetrics(collection, status string, durationSeconds float64) {
	VectorSearches.WithLabelValues(collection, status).Inc()
	if durationSeconds > 0 {
		VectorSearchLatency.WithLabelValues(collection).Observe(durationSeconds)
	}
}

// RecordEmbeddingMetrics records embedding metrics
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordLLMMetrics records summarizer/reranker calls
func RecordLLMMetrics(operation, status string, durationSeconds float64) {
	LLMRequests.WithLabelValues(operation, status).Inc()
	if durationSeconds > 0 {
		LLMLatency.WithLabelValues(operation).Observe(durationSeconds)
	}
}
