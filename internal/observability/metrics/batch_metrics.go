package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evetools/oretax/internal/esi"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	BatchErrorTypeDeadlineExceeded = "deadline_exceeded"
	BatchErrorTypeDB               = "db"
	BatchErrorTypeUpstream         = "upstream"
	BatchErrorTypeUnknown          = "unknown"
)

// BatchMetrics captures pipeline health signals: how often each job runs,
// how long it takes, and how it fails.
type BatchMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	recordsProcessed *prometheus.CounterVec
	lockContended    *prometheus.CounterVec
	runLoopLag       prometheus.Histogram
}

var (
	batchMetricsOnce sync.Once
	batchMetrics     *BatchMetrics
)

// Batch returns the singleton batch metrics registry.
func Batch() *BatchMetrics {
	batchMetricsOnce.Do(func() {
		batchMetrics = newBatchMetrics(prometheus.DefaultRegisterer)
	})
	return batchMetrics
}

// ResetBatchMetricsForTest resets the batch metrics singleton for tests.
func ResetBatchMetricsForTest() {
	batchMetricsOnce = sync.Once{}
	batchMetrics = nil
}

func newBatchMetrics(registerer prometheus.Registerer) *BatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oretax_batch_job_runs_total",
		Help: "Batch job executions by job name.",
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oretax_batch_job_duration_seconds",
		Help:    "Batch job latency to keep the tax pipeline within its run interval.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oretax_batch_job_timeout_total",
		Help: "Batch jobs that ran past their deadline.",
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oretax_batch_job_error_total",
		Help: "Batch job errors by type for triage.",
	}, []string{"job", "error_type"})
	recordsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oretax_batch_records_processed_total",
		Help: "Records processed per job to gauge pipeline throughput.",
	}, []string{"job", "resource"})
	lockContended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oretax_batch_lock_contended_total",
		Help: "Runs skipped because another instance held the pipeline lock.",
	}, []string{"job"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oretax_batch_runloop_lag_seconds",
		Help:    "Run loop lag beyond the configured interval.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		recordsProcessed,
		lockContended,
		runLoopLag,
	)

	return &BatchMetrics{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		recordsProcessed: recordsProcessed,
		lockContended:    lockContended,
		runLoopLag:       runLoopLag,
	}
}

// IncJobRun increments the run counter for a batch job.
func (m *BatchMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records batch job latency in seconds.
func (m *BatchMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the batch job.
func (m *BatchMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the batch job error counter with classification.
func (m *BatchMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyBatchError(err)).Inc()
}

// AddRecordsProcessed adds processed record counts for throughput dashboards.
func (m *BatchMetrics) AddRecordsProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// IncLockContended counts runs skipped due to a held distributed lock.
func (m *BatchMetrics) IncLockContended(job string) {
	if m == nil {
		return
	}
	m.lockContended.WithLabelValues(job).Inc()
}

// ObserveRunLoopLag records how far behind schedule the run loop fell.
func (m *BatchMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifyBatchError maps an error to a low-cardinality type label.
func ClassifyBatchError(err error) string {
	switch {
	case err == nil:
		return BatchErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return BatchErrorTypeDeadlineExceeded
	case errors.Is(err, esi.ErrStatus) || errors.Is(err, esi.ErrTokenMissing):
		return BatchErrorTypeUpstream
	case errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrRecordNotFound):
		return BatchErrorTypeDB
	default:
		return BatchErrorTypeUnknown
	}
}
