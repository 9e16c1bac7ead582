package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	submissionTransitions *prometheus.CounterVec
	lifecycleRejections   *prometheus.CounterVec
	questionCacheLookups  *prometheus.CounterVec
	examEventsPublished   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the exam API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		submissionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_submission_transitions_total",
			Help: "Exam submission status changes, labelled by the status entered.",
		}, []string{"status"})

		lifecycleRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_lifecycle_rejections_total",
			Help: "Rejected exam lifecycle operations by operation and reason.",
		}, []string{"operation", "reason"})

		questionCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_question_cache_lookups_total",
			Help: "Question bank cache lookups by result.",
		}, []string{"result"})

		examEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_events_published_total",
			Help: "Exam lifecycle events published to brokers.",
		}, []string{"type", "transport"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionTransitions,
			lifecycleRejections,
			questionCacheLookups,
			examEventsPublished,
		)
	})
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

// SubmissionTransitions counts submissions entering each status.
func SubmissionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionTransitions
}

// LifecycleRejections counts rejected begin, autosave, submit and grade calls.
func LifecycleRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleRejections
}

// QuestionCacheLookups counts question bank cache hits and misses.
func QuestionCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return questionCacheLookups
}

// ExamEventsPublished counts lifecycle events fanned out per transport.
func ExamEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return examEventsPublished
}
