// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the plant, the controller and the task group.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/ctrlloop-go/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
}

// AllMetrics holds Prometheus implementations for every participant of a
// control loop run.
type AllMetrics struct {
	Plant  *plantMetrics
	Target *targetMetrics
	Group  *groupMetrics
}

// NewAllMetrics creates and registers all control loop metrics.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Plant:  NewPlantMetrics(reg).(*plantMetrics),
		Target: NewTargetMetrics(reg).(*targetMetrics),
		Group:  NewGroupMetrics(reg).(*groupMetrics),
	}
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
