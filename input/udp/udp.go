// Package udp provides an input that receives newline-delimited JSON over UDP.
//
// Every non-blank line of a datagram is one event, decoded like the other
// inputs: a JSON array is a multi-value event, anything else a single value.
// UDP has no return path, so insights are only counted. Events that arrive
// while the queue to the sink is full are dropped and counted, as are lines
// that are not valid JSON.
package udp

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/input"
)

// Input listens on a UDP socket and emits one event per line
type Input struct {
	name    string
	config  Config
	logger  *slog.Logger
	metrics *udpMetrics

	conn   *net.UDPConn
	connMu sync.RWMutex

	started   atomic.Bool
	stopped   atomic.Bool // read loop exited
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	startTime     atomic.Int64
	lastActivity  atomic.Int64
	packets       atomic.Int64
	bytesReceived atomic.Int64
	events        atomic.Int64
	dropped       atomic.Int64
	errorCount    atomic.Int64
	acks          atomic.Int64
	nacks         atomic.Int64
	lastError     atomic.Value // string
}

var (
	_ input.Source           = (*Input)(nil)
	_ component.Discoverable = (*Input)(nil)
)

// NewInput creates a UDP input. The socket is bound on Start.
func NewInput(name string, config Config, deps component.Dependencies) (*Input, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	metrics, err := newMetrics(deps.MetricsRegistry, name)
	if err != nil {
		return nil, errors.Wrap(err, "udp_input", "NewInput", "metrics registration")
	}

	return &Input{
		name:    name,
		config:  config,
		logger:  deps.GetLoggerWithComponent(name).With("address", config.Address),
		metrics: metrics,
		done:    make(chan struct{}),
	}, nil
}

// Name returns the input name
func (u *Input) Name() string { return u.name }

// Addr returns the bound address, or nil before Start
func (u *Input) Addr() net.Addr {
	u.connMu.RLock()
	defer u.connMu.RUnlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Start binds the socket and begins emitting events. The channel closes
// when ctx is cancelled or Close is called.
func (u *Input) Start(ctx context.Context) (<-chan *event.Event, error) {
	if !u.started.CompareAndSwap(false, true) {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "udp_input", "Start", "start check")
	}

	conn, err := u.bind()
	if err != nil {
		u.started.Store(false)
		u.trackError(err)
		return nil, err
	}

	u.connMu.Lock()
	u.conn = conn
	u.connMu.Unlock()

	out := make(chan *event.Event, u.config.BufferSize)
	u.startTime.Store(time.Now().UnixNano())

	u.wg.Add(2)
	go u.readLoop(conn, out)
	go func() {
		defer u.wg.Done()
		select {
		case <-ctx.Done():
		case <-u.done:
		}
		// Unblocks ReadFromUDP
		_ = conn.Close()
	}()

	u.logger.Info("UDP input listening", "local_addr", conn.LocalAddr().String())
	return out, nil
}

func (u *Input) bind() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", u.config.Address)
	if err != nil {
		return nil, errors.WrapConfiguration(err, "udp_input", "Start", "resolve address")
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.WrapTransient(err, "udp_input", "Start", "listen")
	}

	if err := conn.SetReadBuffer(socketBufferSize); err != nil {
		// Some systems cap the socket buffer
		u.logger.Warn("Could not set UDP read buffer", "buffer_size", socketBufferSize, "error", err)
	}
	return conn, nil
}

func (u *Input) readLoop(conn *net.UDPConn, out chan<- *event.Event) {
	defer u.wg.Done()
	defer close(out)
	defer u.stopped.Store(true)

	buf := make([]byte, u.config.maxDatagramSize())
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if stderrors.Is(err, net.ErrClosed) {
				return
			}
			u.trackError(errors.WrapTransient(err, "udp_input", "readLoop", "read datagram"))
			continue
		}

		u.packets.Add(1)
		u.bytesReceived.Add(int64(n))
		u.lastActivity.Store(time.Now().UnixNano())
		u.metrics.recordPacket(u.name, n)

		for _, line := range bytes.Split(buf[:n], []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			u.emit(line, from, out)
		}
		u.metrics.setQueueDepth(len(out))
	}
}

func (u *Input) emit(line []byte, from *net.UDPAddr, out chan<- *event.Event) {
	values, err := input.DecodeValues(line)
	if err != nil {
		u.trackError(err)
		u.dropped.Add(1)
		u.metrics.recordDrop(u.name, "decode_error")
		u.logger.Debug("Dropping undecodable line", "from", from.String(), "error", err)
		return
	}

	ev := event.New(values, event.WithOrigin(u.name))
	select {
	case out <- ev:
		u.events.Add(1)
	default:
		u.dropped.Add(1)
		u.metrics.recordDrop(u.name, "queue_full")
		u.logger.Debug("Event dropped, queue full", "values", ev.Len(), "batch", ev.IsBatch())
	}
}

// Insight counts the outcome; there is nobody to tell
func (u *Input) Insight(insight event.Insight) {
	if insight.IsAck() {
		u.acks.Add(1)
	} else {
		u.nacks.Add(1)
		u.logger.Debug("Event not delivered", "event_id", insight.EventID, "reason", insight.Reason)
	}
	u.metrics.recordInsight(u.name, insight.Kind.String())
}

// Insights returns the number of acknowledged and failed events so far
func (u *Input) Insights() (acks, nacks int64) {
	return u.acks.Load(), u.nacks.Load()
}

// Dropped returns the number of events discarded before reaching the sink
func (u *Input) Dropped() int64 { return u.dropped.Load() }

// Close stops the listener and waits for the read loop to exit
func (u *Input) Close() error {
	u.closeOnce.Do(func() {
		close(u.done)
		u.wg.Wait()
		u.logger.Info("UDP input closed",
			"packets", u.packets.Load(),
			"events", u.events.Load(),
			"dropped", u.dropped.Load())
	})
	return nil
}

func (u *Input) trackError(err error) {
	u.errorCount.Add(1)
	u.lastError.Store(err.Error())
}

// Meta returns component metadata
func (u *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        u.name,
		Type:        "input",
		Description: "Receives newline-delimited JSON datagrams on " + u.config.Address,
		Version:     "1.0.0",
	}
}

// ConfigSchema returns the configuration schema
func (u *Input) ConfigSchema() component.ConfigSchema {
	return udpSchema
}

// Health is healthy while the socket is open
func (u *Input) Health() component.HealthStatus {
	running := u.started.Load() && !u.stopped.Load()
	select {
	case <-u.done:
		running = false
	default:
	}

	u.connMu.RLock()
	bound := u.conn != nil
	u.connMu.RUnlock()

	var uptime time.Duration
	if started := u.startTime.Load(); started > 0 && running {
		uptime = time.Since(time.Unix(0, started))
	}
	lastError, _ := u.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running && bound,
		LastCheck:  time.Now(),
		ErrorCount: int(u.errorCount.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow returns average rates since Start
func (u *Input) DataFlow() component.FlowMetrics {
	var flow component.FlowMetrics

	packets := u.packets.Load()
	if packets > 0 {
		flow.ErrorRate = float64(u.errorCount.Load()) / float64(packets)
	}
	if last := u.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}
	if started := u.startTime.Load(); started > 0 {
		if elapsed := time.Since(time.Unix(0, started)).Seconds(); elapsed > 0 {
			flow.MessagesPerSecond = float64(packets) / elapsed
			flow.BytesPerSecond = float64(u.bytesReceived.Load()) / elapsed
		}
	}
	return flow
}

// CreateInput is the component factory for the UDP input
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapConfiguration(err, "udp_input", "CreateInput", "config unmarshal")
		}
	}
	return NewInput("udp", cfg, deps)
}

// Register registers the UDP input with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "udp",
		Factory:     CreateInput,
		Schema:      udpSchema,
		Type:        "input",
		Protocol:    "udp",
		Description: "Receives newline-delimited JSON datagrams",
		Version:     "1.0.0",
	})
}
