package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records runs of scheduled background jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Scheduled job executions by outcome.",
	}, []string{"job", "outcome"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_rows_affected_total",
		Help: "Rows removed or changed by scheduled jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, affected)
	return &JobMetrics{
		duration: duration,
		runs:     runs,
		affected: affected,
	}
}

// ObserveRun records one job execution; a nil err counts as success.
func (j *JobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if j == nil || j.duration == nil || j.runs == nil {
		return
	}
	job = normalizeLabel(job)
	j.duration.WithLabelValues(job).Observe(duration.Seconds())
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	j.runs.WithLabelValues(job, outcome).Inc()
}

// AddAffected adds n to the job's affected row counter.
func (j *JobMetrics) AddAffected(job string, n int64) {
	if j == nil || j.affected == nil || n <= 0 {
		return
	}
	j.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}
