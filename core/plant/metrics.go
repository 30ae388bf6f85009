package plant

import "github.com/codewandler/ctrlloop-go/core/metrics"

// Metrics defines the instrumentation points of the plant loop.
// All methods are thread-safe.
type Metrics interface {
	TickDuration() metrics.Timer
	Position(v float64)
	Velocity(v float64)

	CommandApplied(kind string)
	CommandRejected(kind string)

	Subscribers(n int)
	BroadcastDropped()
	SubscriberPruned()
}

type nopMetrics struct{}

func (nopMetrics) TickDuration() metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) Position(float64)            {}
func (nopMetrics) Velocity(float64)            {}
func (nopMetrics) CommandApplied(string)       {}
func (nopMetrics) CommandRejected(string)      {}
func (nopMetrics) Subscribers(int)             {}
func (nopMetrics) BroadcastDropped()           {}
func (nopMetrics) SubscriberPruned()           {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
