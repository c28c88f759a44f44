package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline and warm-up Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queries_total",
			Help:      "Questions handled, by outcome",
		},
		[]string{"outcome"}, // answered, no_results, or a failure kind
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question handling duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)

	QueryConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_confidence",
			Help:      "Confidence of answered questions",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	RetrievedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "retrieved_documents",
			Help:      "Documents kept after threshold filtering",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	WarmupState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "warmup_state",
			Help:      "Model readiness: 0 cold, 1 warming up, 2 ready, 3 degraded",
		},
	)

	WarmupAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "warmup_attempts_total",
			Help:      "Warm-up generation attempts, by result",
		},
		[]string{"result"}, // success, not_ready, error
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers query and warm-up metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryConfidence)
	prometheus.MustRegister(RetrievedDocuments)
	prometheus.MustRegister(WarmupState)
	prometheus.MustRegister(WarmupAttemptsTotal)
	pipelineMetricsRegistered = true
}
