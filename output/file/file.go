package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/postprocessor"
	"github.com/c360/linesink/sink"
)

// state is the sink's lifecycle: uninitialized → active → terminated.
// Only active carries a handle.
type state interface {
	lifecycle() component.State
}

type uninitialized struct{}

type active struct {
	handle *Handle
}

type terminated struct{}

func (uninitialized) lifecycle() component.State { return component.StateCreated }
func (active) lifecycle() component.State        { return component.StateStarted }
func (terminated) lifecycle() component.State    { return component.StateStopped }

// Sink writes each encoded value of an event as one line of a file and
// flushes once per event.
//
// A host drives it one call at a time; Health and DataFlow may be called
// concurrently with those calls.
type Sink struct {
	name    string
	config  Config
	fs      afero.Fs
	logger  *slog.Logger
	metrics *fileMetrics

	// Touched only by the host's sequential calls
	state state
	chain postprocessor.Chain
	id    string

	// Observability, read from other goroutines
	status        atomic.Int32
	startTime     atomic.Int64
	lastActivity  atomic.Int64
	eventsWritten atomic.Int64
	valuesWritten atomic.Int64
	bytesWritten  atomic.Int64
	errorCount    atomic.Int64
	lastError     atomic.Value // string
}

var _ sink.Sink = (*Sink)(nil)

// NewSink creates a file sink from raw JSON configuration. An absent or null
// configuration is rejected: a file sink cannot be configured implicitly.
func NewSink(rawConfig json.RawMessage, deps component.Dependencies) (*Sink, error) {
	trimmed := bytes.TrimSpace(rawConfig)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.WrapConfiguration(errors.ErrMissingConfig, "Sink", "NewSink", "config presence check")
	}

	var config Config
	if err := component.SafeUnmarshal(trimmed, &config); err != nil {
		return nil, errors.WrapConfiguration(err, "Sink", "NewSink", "config unmarshal")
	}

	name := "file"
	metrics, err := newMetrics(deps.MetricsRegistry, name)
	if err != nil {
		return nil, errors.Wrap(err, "Sink", "NewSink", "metrics registration")
	}

	s := &Sink{
		name:    name,
		config:  config,
		fs:      deps.GetFs(),
		logger:  deps.GetLoggerWithComponent(name),
		metrics: metrics,
		state:   uninitialized{},
	}
	s.status.Store(int32(component.StateCreated))
	return s, nil
}

// NewOutput is the component factory for the file output
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	s, err := NewSink(rawConfig, deps)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the configured output path
func (s *Sink) Path() string {
	return s.config.File
}

// Init builds the postprocessor chain and opens the output file. On failure
// the sink stays uninitialized and OnEvent remains a no-op.
func (s *Sink) Init(ctx context.Context, args sink.InitArgs) error {
	if _, ok := s.state.(uninitialized); !ok {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sink", "Init",
			fmt.Sprintf("init from state %s", s.state.lifecycle()))
	}

	chain, err := postprocessor.Make(args.Postprocessors)
	if err != nil {
		s.recordFailure(err, false)
		return errors.WrapConfiguration(err, "Sink", "Init", "build postprocessor chain")
	}

	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Sink", "Init", "context check")
	}

	handle, err := OpenHandle(s.fs, s.config.File)
	if err != nil {
		wrapped := errors.WrapIO(err, "Sink", "Init", fmt.Sprintf("open %s", s.config.File))
		s.recordFailure(wrapped, false)
		s.logger.Error("Failed to open output file",
			"path", s.config.File,
			"error", err)
		return wrapped
	}

	s.chain = chain
	s.id = args.SinkID
	s.state = active{handle: handle}
	s.status.Store(int32(component.StateStarted))
	s.startTime.Store(time.Now().UnixNano())

	s.logger.Info("File output initialized",
		"sink_id", args.SinkID,
		"sink_url", args.SinkURL,
		"path", s.config.File,
		"postprocessors", chain.Names())

	return nil
}

// OnEvent encodes, transforms, and appends every value of ev, then flushes
// once. Each packet becomes one line. The first failure aborts the event and
// nothing is acknowledged. Outside the active state the event is ignored.
func (s *Sink) OnEvent(ctx context.Context, ev *event.Event, c codec.Codec) ([]sink.Reply, error) {
	act, ok := s.state.(active)
	if !ok {
		s.logger.Debug("Event ignored, sink not active",
			"event_id", ev.ID,
			"state", s.state.lifecycle().String())
		return nil, nil
	}

	if c == nil {
		var err error
		if c, err = codec.Lookup(s.DefaultCodec()); err != nil {
			return nil, s.fail(err)
		}
	}

	var written int64
	for i, value := range ev.Values {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(errors.WrapTransient(err, "Sink", "OnEvent", "context check"))
		}

		data, err := c.Encode(value)
		if err != nil {
			return nil, s.fail(errors.WrapEncode(err, "Sink", "OnEvent",
				fmt.Sprintf("encode value %d with %s", i, c.Name())))
		}

		packets, err := s.chain.Apply(ev.IngestNS, data)
		if err != nil {
			return nil, s.fail(errors.WrapTransform(err, "Sink", "OnEvent",
				fmt.Sprintf("postprocess value %d", i)))
		}

		for _, packet := range packets {
			n, err := act.handle.AppendLine(packet)
			written += int64(n)
			if err != nil {
				return nil, s.fail(errors.WrapIO(err, "Sink", "OnEvent", "append line"))
			}
		}
	}

	start := time.Now()
	if err := act.handle.Flush(); err != nil {
		return nil, s.fail(errors.WrapIO(err, "Sink", "OnEvent", "flush"))
	}
	s.metrics.recordFlush(s.name, time.Since(start))

	values := int64(len(ev.Values))
	s.eventsWritten.Add(1)
	s.valuesWritten.Add(values)
	s.bytesWritten.Add(written)
	s.lastActivity.Store(time.Now().UnixNano())
	s.metrics.recordEvent(s.name, values, written)

	return []sink.Reply{sink.InsightReply(ev.InsightAck())}, nil
}

// OnSignal does nothing; the file output has no signal-driven behavior.
func (s *Sink) OnSignal(_ context.Context, _ event.Signal) ([]sink.Reply, error) {
	return nil, nil
}

// Terminate flushes and closes the output file. Failures are logged and
// swallowed so shutdown always completes. Calling it again does nothing.
func (s *Sink) Terminate(_ context.Context) {
	switch st := s.state.(type) {
	case terminated:
		return
	case active:
		if err := st.handle.Flush(); err != nil {
			s.recordFailure(errors.WrapIO(err, "Sink", "Terminate", "flush"), false)
			s.logger.Warn("Failed to flush output file on terminate",
				"path", st.handle.Path(),
				"error", err)
		}
		if err := st.handle.Close(); err != nil {
			s.recordFailure(errors.WrapIO(err, "Sink", "Terminate", "close"), false)
			s.logger.Warn("Failed to close output file",
				"path", st.handle.Path(),
				"error", err)
		}
		s.logger.Info("File output terminated",
			"sink_id", s.id,
			"path", s.config.File,
			"events_written", s.eventsWritten.Load())
	}

	s.state = terminated{}
	s.status.Store(int32(component.StateStopped))
}

// IsActive always reports true: the file output has no paused mode.
func (s *Sink) IsActive() bool { return true }

// AutoAck reports true: the sink acknowledges every written event itself.
func (s *Sink) AutoAck() bool { return true }

// DefaultCodec returns "json"
func (s *Sink) DefaultCodec() string { return codec.JSONName }

// fail records err against the current event and returns it.
func (s *Sink) fail(err error) error {
	s.recordFailure(err, true)
	s.logger.Error("Event write failed",
		"kind", errors.KindOf(err).String(),
		"error", err)
	return err
}

func (s *Sink) recordFailure(err error, inEvent bool) {
	s.errorCount.Add(1)
	s.lastError.Store(err.Error())
	s.metrics.recordFailure(s.name, errors.KindOf(err).String(), inEvent)
}

// Discoverable interface implementation

// Meta returns component metadata
func (s *Sink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "output",
		Description: "Writes each encoded value as one line of a file, flushing per event",
		Version:     "1.0.0",
	}
}

// ConfigSchema returns the configuration schema
func (s *Sink) ConfigSchema() component.ConfigSchema {
	return fileSchema
}

// Health returns the current health status
func (s *Sink) Health() component.HealthStatus {
	status := component.State(s.status.Load())

	var uptime time.Duration
	if started := s.startTime.Load(); started > 0 && status == component.StateStarted {
		uptime = time.Since(time.Unix(0, started))
	}

	lastError, _ := s.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    status == component.StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow returns average rates since Init
func (s *Sink) DataFlow() component.FlowMetrics {
	events := s.eventsWritten.Load()
	errorCount := s.errorCount.Load()

	var flow component.FlowMetrics
	if events+errorCount > 0 {
		flow.ErrorRate = float64(errorCount) / float64(events+errorCount)
	}
	if last := s.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}
	if started := s.startTime.Load(); started > 0 {
		if elapsed := time.Since(time.Unix(0, started)).Seconds(); elapsed > 0 {
			flow.MessagesPerSecond = float64(s.valuesWritten.Load()) / elapsed
			flow.BytesPerSecond = float64(s.bytesWritten.Load()) / elapsed
		}
	}
	return flow
}

// Register registers the file output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "file",
		Factory:     NewOutput,
		Schema:      fileSchema,
		Type:        "output",
		Protocol:    "file",
		Description: "Line-oriented file output: one encoded value per line, flushed per event",
		Version:     "1.0.0",
	})
}
