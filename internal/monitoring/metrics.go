// Package monitoring exposes Prometheus metrics for the shell's internals.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the control process.
type Metrics struct {
	// Window metrics
	WindowsOpen           prometheus.Gauge
	GeometryWrites        prometheus.Counter
	GeometryWriteFailures prometheus.Counter

	// Keyboard relay metrics
	LayoutEventsRelayed prometheus.Counter

	// Backend metrics
	BackendTransitions *prometheus.CounterVec
}

// NewMetrics creates a new metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		WindowsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_windows_open",
				Help: "Number of currently open shell windows",
			},
		),
		GeometryWrites: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_window_geometry_writes_total",
				Help: "Total number of persisted window geometry writes",
			},
		),
		GeometryWriteFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_window_geometry_write_failures_total",
				Help: "Total number of failed window geometry writes",
			},
		),
		LayoutEventsRelayed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_keyboard_layout_events_total",
				Help: "Total number of keyboard layout changes relayed to windows",
			},
		),
		BackendTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_backend_transitions_total",
				Help: "Backend process state transitions",
			},
			[]string{"state"},
		),
	}
}
