package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/ctrlloop-go/core/metrics"
	"github.com/codewandler/ctrlloop-go/core/plant"
)

// plantMetrics implements plant.Metrics using Prometheus.
type plantMetrics struct {
	tickDuration     prometheus.Histogram
	position         prometheus.Gauge
	velocity         prometheus.Gauge
	commandsTotal    *prometheus.CounterVec
	subscribers      prometheus.Gauge
	broadcastDropped prometheus.Counter
	subscriberPruned prometheus.Counter
}

func NewPlantMetrics(reg prometheus.Registerer) plant.Metrics {
	m := &plantMetrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctrlloop_plant_tick_duration_seconds",
			Help:    "Time spent integrating and broadcasting per tick",
			Buckets: defaultBuckets,
		}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_plant_position",
			Help: "Current plant position",
		}),
		velocity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_plant_velocity",
			Help: "Current plant velocity",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrlloop_plant_commands_total",
			Help: "Total number of plant commands received",
		}, []string{"kind", "applied"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctrlloop_plant_subscribers",
			Help: "Number of registered position subscribers",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctrlloop_plant_broadcast_dropped_total",
			Help: "Position updates dropped because a subscriber mailbox was full",
		}),
		subscriberPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctrlloop_plant_subscribers_pruned_total",
			Help: "Subscribers removed because their mailbox was closed",
		}),
	}

	reg.MustRegister(
		m.tickDuration,
		m.position,
		m.velocity,
		m.commandsTotal,
		m.subscribers,
		m.broadcastDropped,
		m.subscriberPruned,
	)
	return m
}

func (m *plantMetrics) TickDuration() metrics.Timer { return newTimer(m.tickDuration) }
func (m *plantMetrics) Position(v float64)          { m.position.Set(v) }
func (m *plantMetrics) Velocity(v float64)          { m.velocity.Set(v) }

func (m *plantMetrics) CommandApplied(kind string) {
	m.commandsTotal.WithLabelValues(kind, "true").Inc()
}

func (m *plantMetrics) CommandRejected(kind string) {
	m.commandsTotal.WithLabelValues(kind, "false").Inc()
}

func (m *plantMetrics) Subscribers(n int) { m.subscribers.Set(float64(n)) }
func (m *plantMetrics) BroadcastDropped() { m.broadcastDropped.Inc() }
func (m *plantMetrics) SubscriberPruned() { m.subscriberPruned.Inc() }

var _ plant.Metrics = (*plantMetrics)(nil)
