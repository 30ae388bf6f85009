package target

// Metrics defines the instrumentation points of the controller loop.
// All methods are thread-safe.
type Metrics interface {
	PositionObserved()
	TrackingError(e float64)
	Command(v float64)
	CommandDropped()
}

type nopMetrics struct{}

func (nopMetrics) PositionObserved()     {}
func (nopMetrics) TrackingError(float64) {}
func (nopMetrics) Command(float64)       {}
func (nopMetrics) CommandDropped()       {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
