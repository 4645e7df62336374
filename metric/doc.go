// Package metric wraps a Prometheus registry for linesink components.
//
// Components receive a *MetricsRegistry through component.Dependencies and
// register their own collectors with it:
//
//	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
//		Namespace: "linesink",
//		Subsystem: "file",
//		Name:      "events_total",
//		Help:      "Events handled by the file output",
//	}, []string{"component", "status"})
//	if err := registry.RegisterCounterVec(name, "events_total", requests); err != nil {
//		return err
//	}
//
// A nil registry means metrics are disabled; components check for it before
// registering anything.
//
// The pipeline-wide counters in Metrics are registered automatically, and
// Server exposes everything at /metrics with a /health probe alongside.
package metric
