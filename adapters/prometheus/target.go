package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/ctrlloop-go/core/target"
)

// targetMetrics implements target.Metrics using Prometheus.
type targetMetrics struct {
	observed      prometheus.Counter
	trackingError prometheus.Gauge
	command       prometheus.Gauge
	dropped       prometheus.Counter
}

func NewTargetMetrics(reg prometheus.Registerer) target.Metrics {
	m := &targetMetrics{
		observed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctrlloop_target_positions_observed_total",
			Help: "Position updates received by the controller",
		}),
		trackingError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_target_tracking_error",
			Help: "Setpoint minus last observed position",
		}),
		command: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_target_command",
			Help: "Last commanded velocity",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctrlloop_target_commands_dropped_total",
			Help: "Corrections dropped because the plant mailbox was full",
		}),
	}
	reg.MustRegister(m.observed, m.trackingError, m.command, m.dropped)
	return m
}

func (m *targetMetrics) PositionObserved()       { m.observed.Inc() }
func (m *targetMetrics) TrackingError(e float64) { m.trackingError.Set(e) }
func (m *targetMetrics) Command(v float64)       { m.command.Set(v) }
func (m *targetMetrics) CommandDropped()         { m.dropped.Inc() }

var _ target.Metrics = (*targetMetrics)(nil)
