// Package metrics provides the instrumentation primitives shared by the
// control-loop packages. Each package declares its own metrics interface in
// terms of these types, so the core stays independent of any backend.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time:
//
//	defer m.TickDuration().ObserveDuration()
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}
