package metrics

import "github.com/prometheus/client_golang/prometheus"

// Language model Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generation_requests_total",
			Help:      "Total number of language model requests",
		},
		[]string{"provider", "model", "status"}, // status: success, not_ready, error
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generation_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"provider", "model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generation_tokens_total",
			Help:      "Total language model tokens",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)
)

var genMetricsRegistered bool

// RegisterGenerationMetrics registers language model metrics. Must be called once from main.
func RegisterGenerationMetrics() {
	if genMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(GenerationTokensTotal)
	genMetricsRegistered = true
}

// ObserveGeneration records one language model call.
func ObserveGeneration(provider, model, status string, seconds float64, promptTokens, completionTokens int) {
	GenerationRequestsTotal.WithLabelValues(provider, model, status).Inc()
	GenerationRequestDuration.WithLabelValues(provider, model).Observe(seconds)
	if promptTokens > 0 {
		GenerationTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		GenerationTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}
