package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/metric"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

func startInput(t *testing.T, cfg Config, deps component.Dependencies) (*Input, <-chan *event.Event) {
	t.Helper()
	in, err := NewInput("ws-test", cfg, deps)
	require.NoError(t, err)

	ch, err := in.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	return in, ch
}

func dial(t *testing.T, in *Input, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+in.Addr()+in.config.Path, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendData(t *testing.T, conn *websocket.Conn, id, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(MessageEnvelope{
		Type:      TypeData,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload:   json.RawMessage(payload),
	}))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) MessageEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env MessageEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func recvEvent(t *testing.T, ch <-chan *event.Event) *event.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestInput_DataIsAckedOnOriginatingConnection(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	sendData(t, conn, "msg-001", `{"sensor":"temp-01","value":23.5}`)

	ev := recvEvent(t, ch)
	assert.Equal(t, "msg-001", ev.ID)
	assert.Equal(t, "ws-test", ev.Origin)
	assert.Equal(t, []any{map[string]any{"sensor": "temp-01", "value": json.Number("23.5")}}, ev.Values)
	assert.Equal(t, 1, in.Pending())

	in.Insight(ev.InsightAck())

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeAck, env.Type)
	assert.Equal(t, "msg-001", env.ID)
	assert.Zero(t, in.Pending())
}

func TestInput_BatchAndNack(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	sendData(t, conn, "batch-1", `[{"a":1},{"b":2},"c"]`)

	ev := recvEvent(t, ch)
	require.Len(t, ev.Values, 3)
	assert.True(t, ev.IsBatch())

	in.Insight(ev.InsightFail("io: disk full"))

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeNack, env.Type)
	assert.Equal(t, "batch-1", env.ID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "delivery_failed", payload["reason"])
	assert.Equal(t, "io: disk full", payload["error"])
}

func TestInput_GeneratedIDWhenEmpty(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	sendData(t, conn, "", `"hello"`)
	ev := recvEvent(t, ch)
	assert.NotEmpty(t, ev.ID)

	in.Insight(ev.InsightAck())
	assert.Equal(t, ev.ID, readEnvelope(t, conn).ID)
}

func TestInput_InvalidMessagesAreNacked(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	tests := []struct {
		name   string
		msg    string
		reason string
	}{
		{"not json", `{{{`, "invalid_envelope"},
		{"missing type", `{"id":"x"}`, "invalid_envelope"},
		{"missing payload", `{"type":"data","id":"p1"}`, "invalid_payload"},
		{"unknown type", `{"type":"request","id":"r1"}`, "unknown_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)))
			env := readEnvelope(t, conn)
			assert.Equal(t, TypeNack, env.Type)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(env.Payload, &payload))
			assert.Equal(t, tt.reason, payload["reason"])
		})
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
	assert.GreaterOrEqual(t, in.Health().ErrorCount, 4)
}

func TestInput_ControlEnvelopesIgnored(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	require.NoError(t, conn.WriteJSON(MessageEnvelope{Type: TypeAck, ID: "remote"}))
	sendData(t, conn, "after", `1`)

	ev := recvEvent(t, ch)
	assert.Equal(t, "after", ev.ID)
}

func TestInput_BearerAuth(t *testing.T) {
	t.Setenv("WS_TEST_TOKEN", "s3cret")

	cfg := testConfig()
	cfg.Auth = &AuthConfig{Type: "bearer", BearerTokenEnv: "WS_TEST_TOKEN"}
	in, _ := startInput(t, cfg, component.Dependencies{})

	url := "ws://" + in.Addr() + cfg.Path
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer wrong"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	dial(t, in, http.Header{"Authorization": {"Bearer s3cret"}})
}

func TestInput_BasicAuth(t *testing.T) {
	t.Setenv("WS_TEST_USER", "alice")
	t.Setenv("WS_TEST_PASS", "pw")

	cfg := testConfig()
	cfg.Auth = &AuthConfig{Type: "basic", BasicUsernameEnv: "WS_TEST_USER", BasicPasswordEnv: "WS_TEST_PASS"}
	in, _ := startInput(t, cfg, component.Dependencies{})

	req, err := http.NewRequest(http.MethodGet, "http://example", nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice", "pw")
	dial(t, in, http.Header{"Authorization": req.Header["Authorization"]})

	req.SetBasicAuth("alice", "nope")
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+in.Addr()+cfg.Path,
		http.Header{"Authorization": req.Header["Authorization"]})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInput_MaxConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	in, _ := startInput(t, cfg, component.Dependencies{})

	dial(t, in, nil)
	require.Eventually(t, func() bool { return in.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+in.Addr()+cfg.Path, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestInput_InsightAfterDisconnectIsDropped(t *testing.T) {
	in, ch := startInput(t, testConfig(), component.Dependencies{})
	conn := dial(t, in, nil)

	sendData(t, conn, "gone", `1`)
	ev := recvEvent(t, ch)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return in.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, in.Pending())

	assert.NotPanics(t, func() { in.Insight(ev.InsightAck()) })
}

func TestInput_CancelClosesChannel(t *testing.T) {
	in, err := NewInput("ws-test", testConfig(), component.Dependencies{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := in.Start(ctx)
	require.NoError(t, err)

	conn := dial(t, in, nil)
	require.Eventually(t, func() bool { return in.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("event channel not closed")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server closed the connection")

	assert.False(t, in.Health().Healthy)
	require.NoError(t, in.Close(), "close after cancel is a no-op")
}

func TestInput_StartTwice(t *testing.T) {
	in, _ := startInput(t, testConfig(), component.Dependencies{})
	_, err := in.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestInput_ListenFailure(t *testing.T) {
	first, _ := startInput(t, testConfig(), component.Dependencies{})

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second, err := NewInput("ws-second", cfg, component.Dependencies{})
	require.NoError(t, err)

	_, err = second.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
	require.NoError(t, second.Close())
}

func TestInput_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	in, ch := startInput(t, testConfig(), component.Dependencies{MetricsRegistry: registry})
	conn := dial(t, in, nil)

	sendData(t, conn, "m1", `1`)
	ev := recvEvent(t, ch)
	in.Insight(ev.InsightAck())
	readEnvelope(t, conn)

	assert.Equal(t, 1.0, promtest.ToFloat64(in.metrics.messagesReceived.WithLabelValues("ws-test", TypeData)))
	assert.Equal(t, 1.0, promtest.ToFloat64(in.metrics.insightsSent.WithLabelValues("ws-test", TypeAck)))
	assert.Equal(t, 1.0, promtest.ToFloat64(in.metrics.connectionsTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(in.metrics.connectionsActive))

	_, err := NewInput("ws-test", testConfig(), component.Dependencies{MetricsRegistry: registry})
	assert.Error(t, err, "same name cannot register twice")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"relative path", func(c *Config) { c.Path = "ws" }},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }},
		{"bearer without env", func(c *Config) { c.Auth = &AuthConfig{Type: "bearer"} }},
		{"basic without env", func(c *Config) { c.Auth = &AuthConfig{Type: "basic", BasicUsernameEnv: "U"} }},
		{"unknown auth", func(c *Config) { c.Auth = &AuthConfig{Type: "oauth"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	comp, err := registry.CreateComponent("websocket", "input",
		json.RawMessage(`{"addr":"127.0.0.1:0","queue_size":5}`), component.Dependencies{})
	require.NoError(t, err)

	in, ok := comp.(*Input)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:0", in.config.Addr)
	assert.Equal(t, 5, in.config.QueueSize)
	assert.Equal(t, "/ws", in.config.Path, "defaults kept")
	assert.Equal(t, "input", in.Meta().Type)

	_, err = registry.CreateComponent("websocket", "input", json.RawMessage(`{"path":"nope"}`), component.Dependencies{})
	assert.Error(t, err)
}
