package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// MetricsSnapshot is a lightweight view of the engine counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SuggestionsGenerated     uint64    `json:"suggestionsGenerated"`
	AssignmentsCreated       uint64    `json:"assignmentsCreated"`
	ConflictsOpened          uint64    `json:"conflictsOpened"`
	LockContention           uint64    `json:"lockContention"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and engine events.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	suggestionsGenerated prometheus.Counter
	transitions          *prometheus.CounterVec
	conflictsDetected    *prometheus.CounterVec
	scanDuration         prometheus.Histogram
	assignmentsCreated   prometheus.Counter
	lockContention       *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	suggestionCount      uint64
	assignmentCount      uint64
	conflictCount        uint64
	contentionCount      uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	suggestionsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_suggestions_generated_total",
		Help: "Total matching suggestions generated",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_suggestion_transitions_total",
		Help: "Suggestion status transitions by target status",
	}, []string{"status"})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_opened_total",
		Help: "Conflicts opened by scans, by type",
	}, []string{"type"})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conflict_scan_duration_seconds",
		Help:    "Duration of conflict scans",
		Buckets: prometheus.DefBuckets,
	})

	assignmentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manual_assignments_created_total",
		Help: "Total manual assignments created",
	})

	lockContention := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "record_lock_contention_total",
		Help: "Writes rejected because the record lock was held, by record kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, suggestionsGenerated, transitions, conflictsDetected, scanDuration, assignmentsCreated, lockContention, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		suggestionsGenerated: suggestionsGenerated,
		transitions:          transitions,
		conflictsDetected:    conflictsDetected,
		scanDuration:         scanDuration,
		assignmentsCreated:   assignmentsCreated,
		lockContention:       lockContention,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordSuggestionGenerated counts a stored suggestion.
func (m *MetricsService) RecordSuggestionGenerated() {
	if m == nil {
		return
	}
	m.suggestionsGenerated.Inc()
	atomic.AddUint64(&m.suggestionCount, 1)
}

// RecordTransition counts an applied status change.
func (m *MetricsService) RecordTransition(status models.SuggestionStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

// RecordConflictOpened counts a newly materialized conflict.
func (m *MetricsService) RecordConflictOpened(conflictType models.ConflictType) {
	if m == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(string(conflictType)).Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// ObserveScan records how long one scan took.
func (m *MetricsService) ObserveScan(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// RecordAssignmentCreated counts a committed override.
func (m *MetricsService) RecordAssignmentCreated() {
	if m == nil {
		return
	}
	m.assignmentsCreated.Inc()
	atomic.AddUint64(&m.assignmentCount, 1)
}

// RecordLockContention counts a write that lost the record lock.
func (m *MetricsService) RecordLockContention(kind string) {
	if m == nil {
		return
	}
	m.lockContention.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.contentionCount, 1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SuggestionsGenerated:     atomic.LoadUint64(&m.suggestionCount),
		AssignmentsCreated:       atomic.LoadUint64(&m.assignmentCount),
		ConflictsOpened:          atomic.LoadUint64(&m.conflictCount),
		LockContention:           atomic.LoadUint64(&m.contentionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
