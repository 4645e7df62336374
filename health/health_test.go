package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linesink/component"
)

type stubReporter struct {
	status component.HealthStatus
}

func (s *stubReporter) Health() component.HealthStatus { return s.status }

func TestFromComponentHealth(t *testing.T) {
	tests := []struct {
		name   string
		in     component.HealthStatus
		status string
	}{
		{"running", component.HealthStatus{Healthy: true}, StatusHealthy},
		{"running with errors", component.HealthStatus{Healthy: true, ErrorCount: 2}, StatusDegraded},
		{"stopped", component.HealthStatus{Healthy: false}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromComponentHealth("sink/out", tt.in)
			assert.Equal(t, "sink/out", s.Component)
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.status == StatusHealthy, s.Healthy)
			require.NotNil(t, s.Metrics)
			assert.Equal(t, tt.in.ErrorCount, s.Metrics.ErrorCount)
		})
	}
}

func TestFromComponentHealth_SanitizesLastError(t *testing.T) {
	s := FromComponentHealth("input/nats", component.HealthStatus{
		Healthy:    true,
		ErrorCount: 1,
		LastError:  "dial nats://10.0.0.5:4222 failed: token=abc123",
	})

	assert.NotContains(t, s.Message, "10.0.0.5")
	assert.NotContains(t, s.Message, "abc123")
	assert.Contains(t, s.Message, "[URL]")
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := map[string]struct {
		in      string
		absent  string
		present string
	}{
		"path":        {"open /var/log/out.ndjson: permission denied", "/var/log", "[PATH]"},
		"ip and port": {"listen 192.168.1.4:5514 in use", "192.168.1.4", "[IP]"},
		"credential":  {"auth failed password=hunter2", "hunter2", "[REDACTED]"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := sanitizeErrorMessage(tt.in)
			assert.NotContains(t, got, tt.absent)
			assert.Contains(t, got, tt.present)
		})
	}
	assert.Empty(t, sanitizeErrorMessage(""))
}

func TestAggregate(t *testing.T) {
	healthy := newStatus("a", StatusHealthy, "")
	degraded := newStatus("b", StatusDegraded, "")
	unhealthy := newStatus("c", StatusUnhealthy, "")

	assert.Equal(t, StatusHealthy, Aggregate("x", nil).Status)
	assert.Equal(t, StatusHealthy, Aggregate("x", []Status{healthy}).Status)
	assert.Equal(t, StatusDegraded, Aggregate("x", []Status{healthy, degraded}).Status)

	agg := Aggregate("x", []Status{degraded, unhealthy, healthy})
	assert.Equal(t, StatusUnhealthy, agg.Status)
	assert.False(t, agg.Healthy)
	assert.Len(t, agg.SubStatuses, 3)
}

func TestMonitor_Check(t *testing.T) {
	sinkHealth := &stubReporter{status: component.HealthStatus{Healthy: true, Uptime: time.Second}}
	inputHealth := &stubReporter{status: component.HealthStatus{Healthy: true}}

	m := NewMonitor("linesink")
	m.Watch("sink/out", sinkHealth)
	m.Watch("input/reader", inputHealth)

	s := m.Check()
	assert.Equal(t, "linesink", s.Component)
	assert.Equal(t, StatusHealthy, s.Status)
	require.Len(t, s.SubStatuses, 2)
	assert.Equal(t, "input/reader", s.SubStatuses[0].Component)
	assert.Equal(t, "sink/out", s.SubStatuses[1].Component)

	inputHealth.status.Healthy = false
	assert.Equal(t, StatusUnhealthy, m.Check().Status)

	m.Remove("input/reader")
	assert.Equal(t, StatusHealthy, m.Check().Status)
}

func TestMonitor_ServeHTTP(t *testing.T) {
	reporter := &stubReporter{status: component.HealthStatus{Healthy: true}}
	m := NewMonitor("linesink")
	m.Watch("sink/out", reporter)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body.Status)

	reporter.status = component.HealthStatus{Healthy: true, ErrorCount: 1}
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded still serves")

	reporter.status = component.HealthStatus{Healthy: false}
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
