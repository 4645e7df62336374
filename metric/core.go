package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains pipeline-level metrics shared by every component
type Metrics struct {
	EventsReceived  *prometheus.CounterVec
	InsightsTotal   *prometheus.CounterVec
	EventDuration   *prometheus.HistogramVec
	ComponentStatus *prometheus.GaugeVec
	NATSConnected   prometheus.Gauge
}

// NewMetrics creates the pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linesink",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of events received from inputs",
			},
			[]string{"input"},
		),

		InsightsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linesink",
				Subsystem: "insights",
				Name:      "total",
				Help:      "Total number of insights routed back to inputs",
			},
			[]string{"input", "kind"},
		),

		EventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "linesink",
				Subsystem: "events",
				Name:      "duration_seconds",
				Help:      "Time from event receipt to insight",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"output"},
		),

		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "linesink",
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=created, 1=started, 2=stopped, 3=failed)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "linesink",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.EventsReceived,
		c.InsightsTotal,
		c.EventDuration,
		c.ComponentStatus,
		c.NATSConnected,
	}
}

// RecordEventReceived increments the received event counter
func (c *Metrics) RecordEventReceived(input string) {
	c.EventsReceived.WithLabelValues(input).Inc()
}

// RecordInsight increments the insight counter
func (c *Metrics) RecordInsight(input, kind string) {
	c.InsightsTotal.WithLabelValues(input, kind).Inc()
}

// RecordEventDuration records the time spent handling one event
func (c *Metrics) RecordEventDuration(output string, duration time.Duration) {
	c.EventDuration.WithLabelValues(output).Observe(duration.Seconds())
}

// RecordComponentStatus updates a component's lifecycle status
func (c *Metrics) RecordComponentStatus(component string, status int) {
	c.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}
