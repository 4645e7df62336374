package file

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/linesink/metric"
)

// fileMetrics holds Prometheus metrics for the file output.
type fileMetrics struct {
	events        *prometheus.CounterVec   // By component and status (ok/failed)
	valuesWritten *prometheus.CounterVec   // By component
	bytesWritten  *prometheus.CounterVec   // By component
	errors        *prometheus.CounterVec   // By component and kind
	flushDuration *prometheus.HistogramVec // By component
}

// newMetrics creates and registers file output metrics with the provided registry.
func newMetrics(registry *metric.MetricsRegistry, componentName string) (*fileMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &fileMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "file",
			Name:      "events_total",
			Help:      "Total number of events handled by the file output",
		}, []string{"component", "status"}),

		valuesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "file",
			Name:      "values_written_total",
			Help:      "Total number of encoded values written",
		}, []string{"component"}),

		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "file",
			Name:      "bytes_written_total",
			Help:      "Total number of bytes written, newlines included",
		}, []string{"component"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "file",
			Name:      "errors_total",
			Help:      "Total number of failures by kind",
		}, []string{"component", "kind"}), // kind: configuration, encode, transform, io, unknown

		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linesink",
			Subsystem: "file",
			Name:      "flush_duration_seconds",
			Help:      "Time spent flushing and syncing the output file",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec(componentName, "events_total", m.events); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "values_written_total", m.valuesWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "bytes_written_total", m.bytesWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "errors_total", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(componentName, "flush_duration_seconds", m.flushDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *fileMetrics) recordEvent(componentName string, values, bytes int64) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(componentName, "ok").Inc()
	m.valuesWritten.WithLabelValues(componentName).Add(float64(values))
	m.bytesWritten.WithLabelValues(componentName).Add(float64(bytes))
}

func (m *fileMetrics) recordFailure(componentName, kind string, inEvent bool) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(componentName, kind).Inc()
	if inEvent {
		m.events.WithLabelValues(componentName, "failed").Inc()
	}
}

func (m *fileMetrics) recordFlush(componentName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.WithLabelValues(componentName).Observe(duration.Seconds())
}
