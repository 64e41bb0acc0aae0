package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding and pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkmesh",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding API requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linkmesh",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkmesh",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	SimilarityComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "linkmesh",
			Name:      "similarity_compute_duration_seconds",
			Help:      "Per-source similarity computation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SimilarityCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkmesh",
			Name:      "similarity_cache_total",
			Help:      "Similarity cache hits and misses on the read path",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "linkmesh",
			Name:      "queue_depth",
			Help:      "Embedding queue depth by status",
		},
		[]string{"status"},
	)

	QueueBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkmesh",
			Name:      "queue_batches_total",
			Help:      "Processed queue batches by outcome",
		},
		[]string{"outcome"}, // "drained" / "more_work" / "error"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(SimilarityComputeDuration)
	prometheus.MustRegister(SimilarityCacheTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueBatchesTotal)
	pipelineMetricsRegistered = true
}
