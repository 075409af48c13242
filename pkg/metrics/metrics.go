// Package metrics provides Prometheus metrics for the dropout-radar worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scoring worker.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline throughput.
	eventsFetched  prometheus.Counter
	eventsSkipped  prometheus.Counter
	studentsScored prometheus.Counter

	// Persistence outcome.
	updatesApplied   prometheus.Counter
	updatesUnmatched prometheus.Counter

	// Per-school run accounting.
	schoolRuns     *prometheus.CounterVec
	runDuration    prometheus.Histogram
	studentsAtRisk prometheus.Counter

	// Job-level health.
	jobRuns     *prometheus.CounterVec
	jobDuration prometheus.Histogram
	lastRunUnix prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dropout_radar",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_events_fetched_total",
		Help:      "Total number of attendance events fetched for scoring",
	})

	m.eventsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_events_skipped_total",
		Help:      "Total number of attendance events dropped for lacking a usable date",
	})

	m.studentsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "students_scored_total",
		Help:      "Total number of students scored by the classifier",
	})

	m.updatesApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "student_updates_applied_total",
		Help:      "Total number of student records updated with risk fields",
	})

	m.updatesUnmatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "student_updates_unmatched_total",
		Help:      "Total number of scored students with no matching student record",
	})

	m.schoolRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "school_runs_total",
			Help:      "Total number of per-school scoring runs by outcome",
		},
		[]string{"outcome"},
	)

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "school_run_duration_seconds",
		Help:      "Duration of one school's scoring run in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.studentsAtRisk = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "students_flagged_total",
		Help:      "Total number of students the classifier flagged as at risk",
	})

	m.jobRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "job_runs_total",
			Help:      "Total number of all-schools scoring job runs by status",
		},
		[]string{"status"},
	)

	m.jobDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_duration_seconds",
		Help:      "Duration of one all-schools scoring job run in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_job_run_unix",
		Help:      "Unix timestamp of the last completed all-schools scoring job",
	})
}

// RecordEventsFetched adds to the fetched events counter.
func RecordEventsFetched(n int) {
	globalManager.eventsFetched.Add(float64(n))
}

// RecordEventsSkipped adds to the skipped events counter.
func RecordEventsSkipped(n int) {
	globalManager.eventsSkipped.Add(float64(n))
}

// RecordStudentsScored adds to the scored students counter.
func RecordStudentsScored(n int) {
	globalManager.studentsScored.Add(float64(n))
}

// RecordUpdatesApplied adds to the applied updates counter.
func RecordUpdatesApplied(n int) {
	globalManager.updatesApplied.Add(float64(n))
}

// RecordUpdatesUnmatched adds to the unmatched updates counter.
func RecordUpdatesUnmatched(n int) {
	globalManager.updatesUnmatched.Add(float64(n))
}

// RecordSchoolRun counts one per-school run with its outcome label
// (scored, no_events, no_features, failed).
func RecordSchoolRun(outcome string) {
	globalManager.schoolRuns.WithLabelValues(outcome).Inc()
}

// RecordRunDuration records one school run's duration.
func RecordRunDuration(d time.Duration) {
	globalManager.runDuration.Observe(d.Seconds())
}

// RecordStudentsFlagged adds to the at-risk students counter.
func RecordStudentsFlagged(n int) {
	globalManager.studentsAtRisk.Add(float64(n))
}

// RecordJobRun counts one all-schools job run with its status label
// (completed, failed).
func RecordJobRun(status string) {
	globalManager.jobRuns.WithLabelValues(status).Inc()
}

// RecordJobDuration records one all-schools job run's duration.
func RecordJobDuration(d time.Duration) {
	globalManager.jobDuration.Observe(d.Seconds())
}

// UpdateLastJobRun sets the completion timestamp of the last job run.
func UpdateLastJobRun(t time.Time) {
	globalManager.lastRunUnix.Set(float64(t.Unix()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
