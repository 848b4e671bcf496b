package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claire_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claire_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claire_questions_total",
			Help: "Questions answered, by mode and outcome.",
		},
		[]string{"mode", "status"},
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claire_retrieval_duration_seconds",
			Help:    "Embed-plus-search latency per question.",
			Buckets: prometheus.DefBuckets,
		},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claire_generation_duration_seconds",
			Help:    "Generation latency per question, by mode.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	StreamFragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claire_stream_fragments_total",
			Help: "Streamed answer fragments delivered to clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuestionsTotal,
		RetrievalDuration,
		GenerationDuration,
		StreamFragmentsTotal,
	)
}
