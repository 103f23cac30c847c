package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and answering Prometheus metrics.
var (
	RAGAnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "rag_answers_total",
			Help:      "Answers by terminal outcome",
		},
		[]string{"outcome"},
	)

	RAGRetrievedCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "rag_retrieved_candidates",
			Help:      "Candidates returned by a single retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	RetrievalEmptyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "retrieval_empty_total",
			Help:      "Retrievals that returned nothing, by cause",
		},
		[]string{"cause"}, // "embedding_failed" / "search_fault" / "no_match"
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "generation_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"model", "status"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "generation_tokens_total",
			Help:      "Chat completion tokens consumed",
		},
		[]string{"model", "type"}, // "prompt" / "completion"
	)
)

var ragMetricsOnce sync.Once

// RegisterRAGMetrics registers retrieval and generation metrics. Safe to call more than once.
func RegisterRAGMetrics() {
	ragMetricsOnce.Do(func() {
		prometheus.MustRegister(
			RAGAnswersTotal,
			RAGRetrievedCandidates,
			RetrievalEmptyTotal,
			GenerationRequestDuration,
			GenerationTokensTotal,
		)
	})
}
