// Package metrics exposes run-loop counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is the AppContext service key the Collector is published under.
const ServiceName = "metrics"

// Cycle outcomes used as the "outcome" label.
const (
	OutcomeIdle      = "idle"
	OutcomeRan       = "ran"
	OutcomeContended = "contended"
	OutcomeError     = "error"
)

// Collector owns a private registry so several schedulers (and tests) can
// coexist in one process. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	jobRuns       *prometheus.CounterVec
	jobFailures   *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	nextRun       *prometheus.GaugeVec
	persistErrors *prometheus.CounterVec
}

// NewCollector creates a collector with Go runtime and process metrics
// included in its registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronguard_cycles_total",
			Help: "Dispatch cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cronguard_cycle_duration_seconds",
			Help:    "Wall time of cycles that held the lock.",
			Buckets: prometheus.DefBuckets,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronguard_job_runs_total",
			Help: "Job executions started.",
		}, []string{"job"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronguard_job_failures_total",
			Help: "Job executions that returned an error.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cronguard_job_duration_seconds",
			Help:    "Job execution latency.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		nextRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cronguard_job_next_run_timestamp_seconds",
			Help: "Unix time of the next scheduled execution.",
		}, []string{"job"}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronguard_state_errors_total",
			Help: "Run state load and save failures.",
		}, []string{"op"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cycles,
		c.cycleDuration,
		c.jobRuns,
		c.jobFailures,
		c.jobDuration,
		c.nextRun,
		c.persistErrors,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordCycle counts a cycle. Duration is observed only for cycles that
// got past the lock.
func (c *Collector) RecordCycle(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(outcome).Inc()
	if outcome != OutcomeContended {
		c.cycleDuration.Observe(d.Seconds())
	}
}

// RecordJob counts one execution of job.
func (c *Collector) RecordJob(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.jobRuns.WithLabelValues(job).Inc()
	c.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		c.jobFailures.WithLabelValues(job).Inc()
	}
}

// SetNextRun publishes the next fire time for job. A zero time removes it.
func (c *Collector) SetNextRun(job string, at time.Time) {
	if c == nil {
		return
	}
	if at.IsZero() {
		c.nextRun.DeleteLabelValues(job)
		return
	}
	c.nextRun.WithLabelValues(job).Set(float64(at.Unix()))
}

// RecordPersistError counts a failed state load or save.
func (c *Collector) RecordPersistError(op string) {
	if c == nil {
		return
	}
	c.persistErrors.WithLabelValues(op).Inc()
}
