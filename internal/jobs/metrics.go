// Package jobmetrics instruments background task handlers.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	audited  prometheus.Counter
}

// NewMetrics registers the job metrics against registerer. A nil registerer
// uses the Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "biztime_jobs_total",
		Help: "Job executions by task type and status.",
	}, []string{"job", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biztime_job_duration_seconds",
		Help:    "Duration of job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	audited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "biztime_company_changes_audited_total",
		Help: "Company changes written to the audit log.",
	})
	registerer.MustRegister(runs, duration, audited)
	return &Metrics{runs: runs, duration: duration, audited: audited}
}

// Tracker records a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for job. It is safe on a nil *Metrics.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddAudited counts audit rows written.
func (m *Metrics) AddAudited() {
	if m == nil {
		return
	}
	m.audited.Inc()
}
