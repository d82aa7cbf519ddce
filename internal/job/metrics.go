package job

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes job lifecycle counters to Prometheus. A nil *Metrics is a
// valid no-op receiver so wiring stays optional.
type Metrics struct {
	registry      prometheus.Registerer
	jobsCreated   prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	tasksFinished *prometheus.CounterVec
	toolUses      prometheus.Counter
	jobsInFlight  prometheus.Gauge
	jobsPruned    prometheus.Counter
}

// InitMetrics registers the job metrics on the given registerer.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		jobsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_created_total",
				Help:      "Total number of jobs created",
			},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of jobs reaching a terminal status",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of supervised job executions",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		tasksFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_finished_total",
				Help:      "Total number of tasks reaching a terminal status",
			},
			[]string{"status"},
		),
		toolUses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_uses_recorded_total",
				Help:      "Total number of tool use records",
			},
		),
		jobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_flight",
				Help:      "Number of jobs currently supervised by the runner",
			},
		),
		jobsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_pruned_total",
				Help:      "Total number of terminal jobs removed by retention",
			},
		),
	}

	reg.MustRegister(
		m.jobsCreated,
		m.jobsFinished,
		m.jobDuration,
		m.tasksFinished,
		m.toolUses,
		m.jobsInFlight,
		m.jobsPruned,
	)

	return m
}

func (m *Metrics) JobCreated() {
	if m == nil {
		return
	}
	m.jobsCreated.Inc()
}

func (m *Metrics) JobFinished(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) TaskFinished(status string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) ToolUseRecorded() {
	if m == nil {
		return
	}
	m.toolUses.Inc()
}

func (m *Metrics) SetInFlight(count int) {
	if m == nil {
		return
	}
	m.jobsInFlight.Set(float64(count))
}

func (m *Metrics) JobsPruned(count int64) {
	if m == nil {
		return
	}
	m.jobsPruned.Add(float64(count))
}
