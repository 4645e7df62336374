package udp

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/linesink/metric"
)

// udpMetrics holds Prometheus metrics for the UDP input
type udpMetrics struct {
	packetsReceived *prometheus.CounterVec // By component
	bytesReceived   *prometheus.CounterVec // By component
	eventsDropped   *prometheus.CounterVec // By component and reason
	insights        *prometheus.CounterVec // By component and kind
	queueDepth      prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) (*udpMetrics, error) {
	// nil registry, nil metrics
	if registry == nil {
		return nil, nil
	}

	m := &udpMetrics{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "udp",
			Name:      "packets_received_total",
			Help:      "Total UDP datagrams received",
		}, []string{"component"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "udp",
			Name:      "bytes_received_total",
			Help:      "Total bytes received from UDP",
		}, []string{"component"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "udp",
			Name:      "events_dropped_total",
			Help:      "Events dropped before reaching the sink",
		}, []string{"component", "reason"}),
		insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "udp",
			Name:      "insights_total",
			Help:      "Delivery outcomes reported by the sink",
		}, []string{"component", "kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "linesink",
			Subsystem:   "udp",
			Name:        "queue_depth",
			Help:        "Events waiting for the sink",
			ConstLabels: prometheus.Labels{"component": componentName},
		}),
	}

	if err := registry.RegisterCounterVec(componentName, "packets_received", m.packetsReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "bytes_received", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "events_dropped", m.eventsDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "insights", m.insights); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *udpMetrics) recordPacket(componentName string, n int) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(componentName).Inc()
	m.bytesReceived.WithLabelValues(componentName).Add(float64(n))
}

func (m *udpMetrics) recordDrop(componentName, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(componentName, reason).Inc()
}

func (m *udpMetrics) recordInsight(componentName, kind string) {
	if m == nil {
		return
	}
	m.insights.WithLabelValues(componentName, kind).Inc()
}

func (m *udpMetrics) setQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
