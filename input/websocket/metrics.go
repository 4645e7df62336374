package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/linesink/metric"
)

// Metrics holds Prometheus metrics for the WebSocket input
type Metrics struct {
	messagesReceived  *prometheus.CounterVec
	insightsSent      *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	queueDepth        prometheus.Gauge
	errorsTotal       *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "messages_received_total",
			Help:      "Total envelopes received via WebSocket",
		}, []string{"component", "type"}),

		insightsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "insights_sent_total",
			Help:      "Total ack/nack envelopes written back to clients",
		}, []string{"component", "kind"}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		}),

		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections",
		}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "queue_depth",
			Help:      "Events waiting for the sink",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "websocket_input",
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"component", "type"}),
	}

	if err := registry.RegisterCounterVec(componentName, "messages_received", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "insights_sent", m.insightsSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "connections_active", m.connectionsActive); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "errors_total", m.errorsTotal); err != nil {
		return nil, err
	}

	return m, nil
}
