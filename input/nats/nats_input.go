// Package nats provides an input that consumes events from a NATS subject.
//
// Each message payload is one JSON document: an array is a multi-value
// event, anything else a single value. The Nats-Msg-Id header, when present,
// becomes the event ID. When a message carries a reply subject the insight is
// published there as
//
//	{"type":"ack","id":"<event id>"}
//	{"type":"nack","id":"<event id>","reason":"..."}
//
// so a producer using request/reply learns whether its data reached the sink.
// Messages that are not valid JSON are answered with a nack immediately.
package nats

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	gonats "github.com/nats-io/nats.go"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/input"
	"github.com/c360/linesink/natsclient"
	"github.com/c360/linesink/pkg/retry"
)

// MsgIDHeader carries a producer-assigned message ID
const MsgIDHeader = gonats.MsgIdHdr

const closeTimeout = 5 * time.Second

// Reply is published to a message's reply subject
type Reply struct {
	Type   string `json:"type"` // ack or nack
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// publisher is satisfied by *nats.Conn and *natsclient.Client
type publisher interface {
	Publish(subject string, data []byte) error
}

// Input subscribes to a subject and emits one event per message
type Input struct {
	name    string
	config  Config
	logger  *slog.Logger
	metrics *natsMetrics

	// Exactly one of conn (supplied by the host) and client (owned) is set
	conn   *gonats.Conn
	client *natsclient.Client
	pub    publisher
	sub    *gonats.Subscription

	pending   map[string]string // event ID -> reply subject
	pendingMu sync.Mutex

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	startTime     atomic.Int64
	lastActivity  atomic.Int64
	messages      atomic.Int64
	bytesReceived atomic.Int64
	errorCount    atomic.Int64
	lastError     atomic.Value // string
}

var (
	_ input.Source           = (*Input)(nil)
	_ component.Discoverable = (*Input)(nil)
)

// NewInput creates a NATS input. It uses deps.NATSConn when set and
// otherwise dials config.URL on Start.
func NewInput(name string, config Config, deps component.Dependencies) (*Input, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := deps.GetLoggerWithComponent(name).With("subject", config.Subject)

	metrics, err := newMetrics(deps.MetricsRegistry, name)
	if err != nil {
		return nil, errors.Wrap(err, "nats_input", "NewInput", "metrics registration")
	}

	in := &Input{
		name:    name,
		config:  config,
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]string),
		done:    make(chan struct{}),
	}

	if deps.NATSConn != nil {
		in.conn = deps.NATSConn
		in.pub = deps.NATSConn
		return in, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(config.ClientName),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(deps.MetricsRegistry),
	}
	if config.TokenEnv != "" {
		opts = append(opts, natsclient.WithToken(os.Getenv(config.TokenEnv)))
	}
	client, err := natsclient.NewClient(config.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "nats_input", "NewInput", "create client")
	}
	in.client = client
	in.pub = client
	return in, nil
}

// Name returns the input name
func (i *Input) Name() string { return i.name }

// Start connects if needed, subscribes, and begins emitting events. The
// channel closes when ctx is cancelled or Close is called.
func (i *Input) Start(ctx context.Context) (<-chan *event.Event, error) {
	if !i.started.CompareAndSwap(false, true) {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "nats_input", "Start", "start check")
	}

	if i.client != nil {
		err := retry.Do(ctx, i.config.connectRetry(), func() error {
			return i.client.Connect(ctx)
		})
		if err != nil {
			i.started.Store(false)
			i.trackError("connect_error", err)
			return nil, errors.Wrap(err, "nats_input", "Start", "connect")
		}
	}

	msgs := make(chan *gonats.Msg, i.config.BufferSize)
	sub, err := i.subscribe(msgs)
	if err != nil {
		i.started.Store(false)
		i.trackError("subscribe_error", err)
		return nil, errors.Wrap(err, "nats_input", "Start", "subscribe")
	}
	i.sub = sub

	out := make(chan *event.Event)
	i.wg.Add(1)
	go i.consume(ctx, msgs, out)

	i.startTime.Store(time.Now().UnixNano())
	i.logger.Info("NATS input subscribed", "queue", i.config.Queue)
	return out, nil
}

func (i *Input) subscribe(msgs chan *gonats.Msg) (*gonats.Subscription, error) {
	if i.client != nil {
		return i.client.ChanQueueSubscribe(i.config.Subject, i.config.Queue, msgs)
	}
	if i.config.Queue != "" {
		return i.conn.ChanQueueSubscribe(i.config.Subject, i.config.Queue, msgs)
	}
	return i.conn.ChanSubscribe(i.config.Subject, msgs)
}

func (i *Input) consume(ctx context.Context, msgs <-chan *gonats.Msg, out chan<- *event.Event) {
	defer i.wg.Done()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-i.done:
			return
		case msg := <-msgs:
			ev := i.toEvent(msg)
			if ev == nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				i.forget(ev.ID)
				return
			case <-i.done:
				i.forget(ev.ID)
				return
			}
		}
	}
}

// toEvent decodes msg and records its reply subject. Undecodable messages
// are nacked and yield nil.
func (i *Input) toEvent(msg *gonats.Msg) *event.Event {
	i.messages.Add(1)
	i.bytesReceived.Add(int64(len(msg.Data)))
	i.lastActivity.Store(time.Now().UnixNano())
	i.metrics.recordMessage(i.name)

	id := msg.Header.Get(MsgIDHeader)

	values, err := input.DecodeValues(msg.Data)
	if err != nil {
		i.trackError("decode_error", err)
		i.logger.Warn("Dropping undecodable message", "msg_id", id, "error", err)
		if msg.Reply != "" {
			i.reply(msg.Reply, Reply{Type: "nack", ID: id, Reason: err.Error()})
		}
		return nil
	}

	ev := event.New(values, event.WithID(id), event.WithOrigin(i.name))
	if msg.Reply != "" {
		i.pendingMu.Lock()
		i.pending[ev.ID] = msg.Reply
		i.pendingMu.Unlock()
	}
	return ev
}

func (i *Input) forget(id string) (string, bool) {
	i.pendingMu.Lock()
	defer i.pendingMu.Unlock()
	subject, ok := i.pending[id]
	delete(i.pending, id)
	return subject, ok
}

// Insight publishes the outcome to the message's reply subject, if it had one
func (i *Input) Insight(insight event.Insight) {
	subject, ok := i.forget(insight.EventID)
	if !ok {
		return
	}

	r := Reply{Type: "ack", ID: insight.EventID}
	if !insight.IsAck() {
		r.Type = "nack"
		r.Reason = insight.Reason
	}
	i.reply(subject, r)
}

func (i *Input) reply(subject string, r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		i.trackError("marshal_error", err)
		return
	}
	if err := i.pub.Publish(subject, data); err != nil {
		i.trackError("reply_error", err)
		i.logger.Warn("Failed to publish reply", "reply_subject", subject, "event_id", r.ID, "error", err)
		return
	}
	i.metrics.recordReply(i.name, r.Type)
}

// Pending returns the number of events awaiting an insight
func (i *Input) Pending() int {
	i.pendingMu.Lock()
	defer i.pendingMu.Unlock()
	return len(i.pending)
}

// Close unsubscribes, stops emitting, and closes an owned connection.
// A connection supplied by the host is left open.
func (i *Input) Close() error {
	var err error
	i.closeOnce.Do(func() {
		close(i.done)

		if i.sub != nil {
			if uerr := i.sub.Unsubscribe(); uerr != nil && !stderrors.Is(uerr, gonats.ErrConnectionClosed) {
				err = errors.WrapTransient(uerr, "nats_input", "Close", "unsubscribe")
			}
		}
		i.wg.Wait()

		if i.client != nil {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if cerr := i.client.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}

		i.logger.Info("NATS input closed", "messages", i.messages.Load())
	})
	return err
}

func (i *Input) trackError(errorType string, err error) {
	i.errorCount.Add(1)
	i.lastError.Store(err.Error())
	i.metrics.recordError(i.name, errorType)
}

// Meta returns component metadata
func (i *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        i.name,
		Type:        "input",
		Description: "Consumes JSON messages from a NATS subject and replies with ack/nack",
		Version:     "1.0.0",
	}
}

// ConfigSchema returns the configuration schema
func (i *Input) ConfigSchema() component.ConfigSchema {
	return natsInputSchema
}

// Health is healthy while subscribed over a live connection
func (i *Input) Health() component.HealthStatus {
	connected := false
	switch {
	case i.client != nil:
		connected = i.client.Status() == natsclient.StatusConnected
	case i.conn != nil:
		connected = i.conn.IsConnected()
	}

	running := i.started.Load()
	select {
	case <-i.done:
		running = false
	default:
	}

	var uptime time.Duration
	if started := i.startTime.Load(); started > 0 && running {
		uptime = time.Since(time.Unix(0, started))
	}
	lastError, _ := i.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(i.errorCount.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow returns average rates since Start
func (i *Input) DataFlow() component.FlowMetrics {
	var flow component.FlowMetrics

	messages := i.messages.Load()
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
