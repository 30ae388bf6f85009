package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/ctrlloop-go/core/group"
	"github.com/codewandler/ctrlloop-go/core/metrics"
)

// groupMetrics implements group.Metrics using Prometheus.
type groupMetrics struct {
	inflight     prometheus.Gauge
	taskDuration *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
}

func NewGroupMetrics(reg prometheus.Registerer) group.Metrics {
	m := &groupMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_group_tasks_inflight",
			Help: "Number of running group tasks",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctrlloop_group_task_duration_seconds",
			Help:    "Task lifetime in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
		}, []string{"task"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrlloop_group_tasks_total",
			Help: "Total number of finished group tasks",
		}, []string{"task", "success"}),
	}
	reg.MustRegister(m.inflight, m.taskDuration, m.tasksTotal)
	return m
}

func (m *groupMetrics) TasksInflight(count int) { m.inflight.Set(float64(count)) }

func (m *groupMetrics) TaskDuration(name string) metrics.Timer {
	return newTimer(m.taskDuration.WithLabelValues(name))
}

func (m *groupMetrics) TaskCompleted(name string, success bool) {
	m.tasksTotal.WithLabelValues(name, boolToStr(success)).Inc()
}

var _ group.Metrics = (*groupMetrics)(nil)
