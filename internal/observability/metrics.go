package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	sweepRunsTotal        prometheus.Counter
	sweepErrorsTotal      prometheus.Counter
	examTransitionsTotal  *prometheus.CounterVec
	answersGradedTotal    *prometheus.CounterVec
	attemptsFinalizedTot  prometheus.Counter
	liveFeedClientsActive prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		sweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sweep_runs_total",
			Help: "Total number of exam status sweeps executed.",
		})

		sweepErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sweep_errors_total",
			Help: "Total number of per-exam persistence failures during sweeps.",
		})

		examTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_status_transitions_total",
			Help: "Total number of exam status transitions applied by the sweeper.",
		}, []string{"to"})

		answersGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "answers_graded_total",
			Help: "Total number of answers graded, labelled by correctness.",
		}, []string{"correct"})

		attemptsFinalizedTot = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_finalized_total",
			Help: "Total number of exam attempts finalized.",
		})

		liveFeedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_feed_clients_active",
			Help: "Number of websocket clients currently connected to exam live feeds.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			sweepRunsTotal,
			sweepErrorsTotal,
			examTransitionsTotal,
			answersGradedTotal,
			attemptsFinalizedTot,
			liveFeedClientsActive,
		)
	})
}

// MetricsHandler exposes the Prometheus scrape endpoint through fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SweepRuns exposes the counter for sweep executions.
func SweepRuns() prometheus.Counter {
	RegisterMetrics()
	return sweepRunsTotal
}

// SweepErrors exposes the counter for per-exam sweep failures.
func SweepErrors() prometheus.Counter {
	RegisterMetrics()
	return sweepErrorsTotal
}

// ExamTransitions exposes the counter for applied status transitions.
func ExamTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return examTransitionsTotal
}

// AnswersGraded exposes the counter for graded answers.
func AnswersGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return answersGradedTotal
}

// AttemptsFinalized exposes the counter for finalized attempts.
func AttemptsFinalized() prometheus.Counter {
	RegisterMetrics()
	return attemptsFinalizedTot
}

// LiveFeedClients exposes the gauge of connected live feed clients.
func LiveFeedClients() prometheus.Gauge {
	RegisterMetrics()
	return liveFeedClientsActive
}
