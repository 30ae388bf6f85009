package group

import (
	"log/slog"

	"github.com/codewandler/ctrlloop-go/core/metrics"
)

type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
	// MaxConcurrent caps the number of tasks a Pool runs at once.
	// If 0 or negative, spawning is unlimited.
	MaxConcurrent int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NopMetrics()
	}
	return o
}

// Metrics defines the instrumentation points of task groups.
// All methods are thread-safe.
type Metrics interface {
	TasksInflight(count int)
	TaskDuration(name string) metrics.Timer
	TaskCompleted(name string, success bool)
}

type nopMetrics struct{}

func (nopMetrics) TasksInflight(int)                 {}
func (nopMetrics) TaskDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) TaskCompleted(string, bool)        {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
