package metric

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetricsRegistry_RegisterCounterVec(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_events_total",
		Help: "A test counter",
	}, []string{"status"})

	require.NoError(t, registry.RegisterCounterVec("file", "events_total", counter))
	counter.WithLabelValues("ok").Add(3)

	assert.True(t, gatheredNames(t, registry)["test_events_total"])
	assert.Equal(t, 3.0, testutil.ToFloat64(counter.WithLabelValues("ok")))
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("c", "counter",
		prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "h"})))
	require.NoError(t, registry.RegisterGauge("c", "gauge",
		prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "h"})))
	require.NoError(t, registry.RegisterGaugeVec("c", "gauge_vec",
		prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge_vec", Help: "h"}, []string{"l"})))

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "h",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	require.NoError(t, registry.RegisterHistogramVec("c", "duration", histogram))
	histogram.WithLabelValues("flush").Observe(0.01)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_counter"])
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_duration_seconds"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	require.NoError(t, registry.RegisterCounter("file", "dup", first))

	// Same key
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter_2", Help: "h"})
	assert.Error(t, registry.RegisterCounter("file", "dup", second))

	// Different key, same prometheus name
	third := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	assert.Error(t, registry.RegisterCounter("other", "dup", third))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gone_counter", Help: "h"})
	require.NoError(t, registry.RegisterCounter("file", "gone", counter))

	assert.True(t, registry.Unregister("file", "gone"))
	assert.False(t, registry.Unregister("file", "gone"))
	assert.False(t, gatheredNames(t, registry)["gone_counter"])

	// Can re-register after unregistering
	assert.NoError(t, registry.RegisterCounter("file", "gone", counter))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", i),
				Help: "h",
			})
			assert.NoError(t, registry.RegisterCounter("file", fmt.Sprintf("c%d", i), counter))
		}(i)
	}
	wg.Wait()

	names := gatheredNames(t, registry)
	for i := 0; i < 20; i++ {
		assert.True(t, names[fmt.Sprintf("concurrent_counter_%d", i)])
	}
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var _ MetricsRegistrar = NewMetricsRegistry()
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()
	require.NotNil(t, core)

	core.RecordEventReceived("stdin")
	core.RecordEventReceived("stdin")
	core.RecordInsight("stdin", "ack")
	core.RecordEventDuration("file", 5*time.Millisecond)
	core.RecordComponentStatus("file", 1)
	core.RecordNATSStatus(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(core.EventsReceived.WithLabelValues("stdin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.InsightsTotal.WithLabelValues("stdin", "ack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.ComponentStatus.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSConnected))

	names := gatheredNames(t, registry)
	assert.True(t, names["linesink_events_received_total"])
	assert.True(t, names["linesink_insights_total"])
	assert.True(t, names["go_goroutines"])
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordEventReceived("stdin")

	ts := httptest.NewServer(NewServer("", "", registry).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `linesink_events_received_total{input="stdin"} 1`)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestServer_HealthHandler(t *testing.T) {
	s := NewServer("", "", NewMetricsRegistry())
	s.SetHealthHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Defaults(t *testing.T) {
	s := NewServer("", "", NewMetricsRegistry())
	assert.Equal(t, "http://:9090/metrics", s.Address())

	s = NewServer("127.0.0.1:9100", "/m", NewMetricsRegistry())
	assert.Equal(t, "http://127.0.0.1:9100/m", s.Address())
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer("127.0.0.1:0", "", NewMetricsRegistry())
	require.NoError(t, s.Stop(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start served after Stop")
	}
}
