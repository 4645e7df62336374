package nats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/linesink/metric"
)

type natsMetrics struct {
	messagesReceived *prometheus.CounterVec // By component
	repliesSent      *prometheus.CounterVec // By component and kind (ack/nack)
	errors           *prometheus.CounterVec // By component and type
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) (*natsMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &natsMetrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "nats_input",
			Name:      "messages_received_total",
			Help:      "Total messages received from the subscription",
		}, []string{"component"}),

		repliesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "nats_input",
			Name:      "replies_sent_total",
			Help:      "Total ack/nack replies published",
		}, []string{"component", "kind"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "nats_input",
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"component", "type"}),
	}

	if err := registry.RegisterCounterVec(componentName, "messages_received", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "replies_sent", m.repliesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "errors_total", m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *natsMetrics) recordMessage(componentName string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(componentName).Inc()
}

func (m *natsMetrics) recordReply(componentName, kind string) {
	if m == nil {
		return
	}
	m.repliesSent.WithLabelValues(componentName, kind).Inc()
}

func (m *natsMetrics) recordError(componentName, errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(componentName, errorType).Inc()
}
