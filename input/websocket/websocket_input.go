package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/input"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	slowThreshold   = 0.80
)

// Envelope types
const (
	TypeData = "data"
	TypeAck  = "ack"
	TypeNack = "nack"
	TypeSlow = "slow"
)

// MessageEnvelope wraps every WebSocket message.
//
//   - "data": payload is one JSON value, or an array for a multi-value event
//   - "ack": the event with ID was delivered
//   - "nack": the event with ID was not delivered; payload holds reason and error
//   - "slow": the event queue is filling up; payload holds depth and capacity
type MessageEnvelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// client is one accepted connection. gorilla/websocket allows a single
// concurrent writer, so writes are serialized.
type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(envelope MessageEnvelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(envelope)
}

// Input accepts WebSocket connections and turns data envelopes into events.
// Each insight is answered on the connection that sent the event.
type Input struct {
	name     string
	config   Config
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	clients   map[string]*client
	clientsMu sync.Mutex
	pending   map[string]*client // event ID -> originating connection
	pendingMu sync.Mutex

	out      chan *event.Event
	shutdown chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	wg       sync.WaitGroup

	startTime         atomic.Int64
	lastActivity      atomic.Int64
	messagesReceived  atomic.Int64
	eventsEmitted     atomic.Int64
	bytesReceived     atomic.Int64
	connectionsTotal  atomic.Int64
	connectionsActive atomic.Int64
	errorCount        atomic.Int64
	lastError         atomic.Value // string
}

var (
	_ input.Source           = (*Input)(nil)
	_ component.Discoverable = (*Input)(nil)
)

// NewInput creates a WebSocket input
func NewInput(name string, config Config, deps component.Dependencies) (*Input, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	metrics, err := newMetrics(deps.MetricsRegistry, name)
	if err != nil {
		return nil, errors.Wrap(err, "websocket_input", "NewInput", "metrics registration")
	}

	return &Input{
		name:    name,
		config:  config,
		logger:  deps.GetLoggerWithComponent(name),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
			CheckOrigin:       func(_ *http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		pending:  make(map[string]*client),
		shutdown: make(chan struct{}),
	}, nil
}

// Name returns the input name
func (i *Input) Name() string { return i.name }

// Addr returns the listen address once started
func (i *Input) Addr() string {
	if i.listener == nil {
		return ""
	}
	return i.listener.Addr().String()
}

// Start listens and begins accepting connections. The event channel closes
// after ctx is cancelled or Close is called and every connection has ended.
func (i *Input) Start(ctx context.Context) (<-chan *event.Event, error) {
	if !i.started.CompareAndSwap(false, true) {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "websocket_input", "Start", "start check")
	}

	listener, err := net.Listen("tcp", i.config.Addr)
	if err != nil {
		i.started.Store(false)
		i.trackError("listen_error", err)
		return nil, errors.WrapIO(err, "websocket_input", "Start", "listen on "+i.config.Addr)
	}
	i.listener = listener

	i.out = make(chan *event.Event, i.config.QueueSize)

	mux := http.NewServeMux()
	mux.HandleFunc(i.config.Path, i.handleWebSocket)
	i.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := i.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			i.trackError("server_error", err)
			i.logger.Error("WebSocket server failed", "error", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			i.stop()
		case <-i.shutdown:
		}
	}()

	i.startTime.Store(time.Now().UnixNano())
	i.logger.Info("WebSocket input listening", "addr", i.Addr(), "path", i.config.Path)
	return i.out, nil
}

// Close stops the server and closes every connection
func (i *Input) Close() error {
	if !i.started.Load() {
		return nil
	}
	i.stop()
	return nil
}

func (i *Input) stop() {
	i.stopOnce.Do(func() {
		i.clientsMu.Lock()
		close(i.shutdown)
		clients := make([]*client, 0, len(i.clients))
		for _, c := range i.clients {
			clients = append(clients, c)
		}
		i.clientsMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := i.server.Shutdown(ctx); err != nil {
			i.logger.Warn("WebSocket server shutdown incomplete", "error", err)
		}

		for _, c := range clients {
			_ = c.conn.Close()
		}

		i.wg.Wait()
		close(i.out)

		i.logger.Info("WebSocket input stopped",
			"connections_total", i.connectionsTotal.Load(),
			"events", i.eventsEmitted.Load())
	})
}

func (i *Input) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !i.authenticateRequest(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		i.trackError("auth_failed", nil)
		return
	}

	if limit := i.config.MaxConnections; limit > 0 && int(i.connectionsActive.Load()) >= limit {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		i.trackError("connection_limit", nil)
		return
	}

	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		i.trackError("upgrade_error", err)
		return
	}

	c := &client{
		id:   fmt.Sprintf("client-%d", i.connectionsTotal.Add(1)),
		conn: conn,
	}

	// Registration and close(shutdown) share the lock, so no handler starts
	// after stop has begun waiting.
	i.clientsMu.Lock()
	select {
	case <-i.shutdown:
		i.clientsMu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	i.clients[c.id] = c
	i.wg.Add(1)
	i.clientsMu.Unlock()

	i.connectionsActive.Add(1)
	if i.metrics != nil {
		i.metrics.connectionsActive.Inc()
		i.metrics.connectionsTotal.Inc()
	}
	i.logger.Debug("Client connected", "client", c.id, "remote", r.RemoteAddr)

	go i.handleClient(c)
}

// authenticateRequest validates the credentials in the upgrade request
func (i *Input) authenticateRequest(r *http.Request) bool {
	if i.config.Auth == nil || i.config.Auth.Type == "" || i.config.Auth.Type == "none" {
		return true
	}

	switch i.config.Auth.Type {
	case "bearer":
		expected := os.Getenv(i.config.Auth.BearerTokenEnv)
		if expected == "" {
			return false
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1

	case "basic":
		username := os.Getenv(i.config.Auth.BasicUsernameEnv)
		password := os.Getenv(i.config.Auth.BasicPasswordEnv)
		if username == "" || password == "" {
			return false
		}
		reqUser, reqPass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		userMatch := subtle.ConstantTimeCompare([]byte(reqUser), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(reqPass), []byte(password)) == 1
		return userMatch && passMatch

	default:
		return false
	}
}

func (i *Input) handleClient(c *client) {
	defer i.wg.Done()
	defer i.disconnect(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-i.shutdown:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					i.trackError("read_error", err)
					i.logger.Debug("Client read failed", "client", c.id, "error", err)
				}
			}
			return
		}

		i.bytesReceived.Add(int64(len(data)))
		i.lastActivity.Store(time.Now().UnixNano())

		envelope, err := parseEnvelope(data)
		if err != nil {
			i.trackError("parse_error", err)
			i.sendNack(c, "", "invalid_envelope", err.Error())
			continue
		}

		i.messagesReceived.Add(1)
		if i.metrics != nil {
			i.metrics.messagesReceived.WithLabelValues(i.name, envelope.Type).Inc()
		}

		switch envelope.Type {
		case TypeData:
			if !i.handleData(c, envelope) {
				return
			}
		case TypeAck, TypeNack, TypeSlow:
			// Control envelopes from the peer carry nothing for a sink
		default:
			i.trackError("unknown_type", nil)
			i.sendNack(c, envelope.ID, "unknown_type", fmt.Sprintf("unsupported envelope type %q", envelope.Type))
		}
	}
}

// handleData emits the event carried by envelope. It returns false once the
// input is shutting down.
func (i *Input) handleData(c *client, envelope *MessageEnvelope) bool {
	values, err := input.DecodeValues(envelope.Payload)
	if err != nil {
		i.trackError("invalid_payload", err)
		i.sendNack(c, envelope.ID, "invalid_payload", err.Error())
		return true
	}

	ev := event.New(values, event.WithID(envelope.ID), event.WithOrigin(i.name))

	i.pendingMu.Lock()
	i.pending[ev.ID] = c
	i.pendingMu.Unlock()

	select {
	case i.out <- ev:
		i.eventsEmitted.Add(1)
	case <-i.shutdown:
		i.forget(ev.ID)
		i.sendNack(c, ev.ID, "shutting_down", "input is shutting down")
		return false
	}

	if capacity := cap(i.out); capacity > 0 {
		depth := len(i.out)
		if i.metrics != nil {
			i.metrics.queueDepth.Set(float64(depth))
		}
		if utilization := float64(depth) / float64(capacity); utilization > slowThreshold {
			i.sendSlow(c, depth, capacity, utilization)
		}
	}
	return true
}

func (i *Input) disconnect(c *client) {
	_ = c.conn.Close()

	i.clientsMu.Lock()
	delete(i.clients, c.id)
	i.clientsMu.Unlock()

	i.pendingMu.Lock()
	for id, owner := range i.pending {
		if owner == c {
			delete(i.pending, id)
		}
	}
	i.pendingMu.Unlock()

	i.connectionsActive.Add(-1)
	if i.metrics != nil {
		i.metrics.connectionsActive.Dec()
	}
	i.logger.Debug("Client disconnected", "client", c.id)
}

func (i *Input) forget(id string) *client {
	i.pendingMu.Lock()
	defer i.pendingMu.Unlock()
	c := i.pending[id]
	delete(i.pending, id)
	return c
}

// Insight answers the originating connection with an ack or nack envelope.
// Insights for connections that have gone away are dropped.
func (i *Input) Insight(insight event.Insight) {
	c := i.forget(insight.EventID)
	if c == nil {
		i.logger.Debug("Insight for unknown or disconnected client", "event_id", insight.EventID)
		return
	}

	if insight.IsAck() {
		i.sendAck(c, insight.EventID)
		return
	}
	i.sendNack(c, insight.EventID, "delivery_failed", insight.Reason)
}

// Connections returns the number of open client connections
func (i *Input) Connections() int {
	return int(i.connectionsActive.Load())
}

// Pending returns the number of events awaiting an insight
func (i *Input) Pending() int {
	i.pendingMu.Lock()
	defer i.pendingMu.Unlock()
	return len(i.pending)
}

func parseEnvelope(data []byte) (*MessageEnvelope, error) {
	var envelope MessageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WrapInvalid(err, "websocket_input", "parseEnvelope", "unmarshal message")
	}
	if envelope.Type == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("missing message type"),
			"websocket_input", "parseEnvelope", "validate envelope")
	}
	return &envelope, nil
}

func (i *Input) sendAck(c *client, messageID string) {
	i.send(c, MessageEnvelope{
		Type:      TypeAck,
		ID:        messageID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (i *Input) sendNack(c *client, messageID, reason, errorMsg string) {
	payload, _ := json.Marshal(map[string]string{
		"reason": reason,
		"error":  errorMsg,
	})
	i.send(c, MessageEnvelope{
		Type:      TypeNack,
		ID:        messageID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
}

func (i *Input) sendSlow(c *client, depth, capacity int, utilization float64) {
	payload, _ := json.Marshal(map[string]any{
		"queue_depth":    depth,
		"queue_capacity": capacity,
		"utilization":    utilization,
	})
	i.send(c, MessageEnvelope{
		Type:      TypeSlow,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
}

func (i *Input) send(c *client, envelope MessageEnvelope) {
	if err := c.write(envelope); err != nil {
		i.trackError("write_error", err)
		i.logger.Debug("Envelope write failed", "client", c.id, "type", envelope.Type, "error", err)
		return
	}
	if i.metrics != nil && (envelope.Type == TypeAck || envelope.Type == TypeNack) {
		i.metrics.insightsSent.WithLabelValues(i.name, envelope.Type).Inc()
	}
}

func (i *Input) trackError(errorType string, err error) {
	i.errorCount.Add(1)
	if err != nil {
		i.lastError.Store(err.Error())
	} else {
		i.lastError.Store(errorType)
	}
	if i.metrics != nil {
		i.metrics.errorsTotal.WithLabelValues(i.name, errorType).Inc()
	}
}

// Meta returns component metadata
func (i *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        i.name,
		Type:        "input",
		Description: "Accepts JSON envelopes over WebSocket and answers each with ack or nack",
		Version:     "1.0.0",
	}
}

// ConfigSchema returns the configuration schema
func (i *Input) ConfigSchema() component.ConfigSchema {
	return websocketInputSchema
}

// Health reports healthy while the server is running, with or without clients
func (i *Input) Health() component.HealthStatus {
	running := i.started.Load()
	select {
	case <-i.shutdown:
		running = false
	default:
	}

	var uptime time.Duration
	if started := i.startTime.Load(); started > 0 && running {
		uptime = time.Since(time.Unix(0, started))
	}
	lastError, _ := i.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(i.errorCount.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow returns average rates since Start
func (i *Input) DataFlow() component.FlowMetrics {
	var flow component.FlowMetrics

	messages := i.messagesReceived.Load()
	if messages > 0 {
		flow.ErrorRate = float64(i.errorCount.Load()) / float64(messages)
	}
	if last := i.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}
	if started := i.startTime.Load(); started > 0 {
		if elapsed := time.Since(time.Unix(0, started)).Seconds(); elapsed > 0 {
			flow.MessagesPerSecond = float64(messages) / elapsed
			flow.BytesPerSecond = float64(i.bytesReceived.Load()) / elapsed
		}
	}
	return flow
}
