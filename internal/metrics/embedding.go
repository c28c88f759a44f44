package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every ragd metric.
const Namespace = "ragd"

// Question embedding Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_requests_total",
			Help:      "Question embedding calls to the provider",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Question embedding latency in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_tokens_total",
			Help:      "Tokens billed for question embeddings",
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_errors_total",
			Help:      "Question embedding failures by cause",
		},
		[]string{"provider", "model", "cause"}, // api_error, empty_vector, dimension_mismatch
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_cache_total",
			Help:      "Question embedding cache lookups",
		},
		[]string{"result"}, // hit, miss, shared
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers question embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	embMetricsRegistered = true
}

// ObserveEmbedding records one provider call. An empty cause means success.
func ObserveEmbedding(provider, model, cause string, seconds float64, tokens int) {
	EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(seconds)
	if cause != "" {
		EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		EmbeddingErrorsTotal.WithLabelValues(provider, model, cause).Inc()
		return
	}
	EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	if tokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(provider, model).Add(float64(tokens))
	}
}
