// Package reader provides an input that reads newline-delimited JSON from a
// file or standard input.
//
// Each non-blank line is one event. A line holding a JSON array becomes one
// event with one value per element; any other JSON document becomes a
// single-value event. Lines that are not valid JSON are logged and skipped.
// The event channel closes at end of input.
package reader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/input"
)

// Source reads events line by line
type Source struct {
	name   string
	config Config
	fs     afero.Fs
	logger *slog.Logger

	// r overrides Path when set
	r io.Reader

	started   atomic.Bool
	closeOnce sync.Once
	closer    io.Closer
	closerMu  sync.Mutex

	startTime    atomic.Int64
	lastActivity atomic.Int64
	lines        atomic.Int64
	events       atomic.Int64
	bytesRead    atomic.Int64
	parseErrors  atomic.Int64
	acks         atomic.Int64
	nacks        atomic.Int64
	lastError    atomic.Value // string
}

var (
	_ input.Source           = (*Source)(nil)
	_ component.Discoverable = (*Source)(nil)
)

// New creates a reader input for config
func New(config Config, deps component.Dependencies) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	name := "reader"
	return &Source{
		name:   name,
		config: config,
		fs:     deps.GetFs(),
		logger: deps.GetLoggerWithComponent(name).With("path", config.Path),
	}, nil
}

// NewFromReader creates a reader input over r instead of a file
func NewFromReader(name string, r io.Reader, deps component.Dependencies) *Source {
	return &Source{
		name:   name,
		fs:     deps.GetFs(),
		logger: deps.GetLoggerWithComponent(name),
		r:      r,
	}
}

// NewInput is the component factory for the reader input. An empty
// configuration reads standard input.
func NewInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := component.SafeUnmarshal(rawConfig, &config); err != nil {
		return nil, errors.WrapConfiguration(err, "reader", "NewInput", "config unmarshal")
	}
	s, err := New(config, deps)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the source name
func (s *Source) Name() string { return s.name }

// Start opens the input and begins emitting events
func (s *Source) Start(ctx context.Context) (<-chan *event.Event, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "Source", "Start", "start check")
	}

	r, err := s.open()
	if err != nil {
		s.started.Store(false)
		s.recordError(err)
		return nil, err
	}

	s.startTime.Store(time.Now().UnixNano())
	out := make(chan *event.Event)
	go s.readLoop(ctx, r, out)

	s.logger.Info("Reader input started")
	return out, nil
}

func (s *Source) open() (io.Reader, error) {
	switch {
	case s.r != nil:
		return s.r, nil
	case s.config.isStdin():
		return os.Stdin, nil
	}

	f, err := s.fs.Open(s.config.Path)
	if err != nil {
		return nil, errors.WrapIO(err, "Source", "Start", "open "+s.config.Path)
	}

	s.closerMu.Lock()
	s.closer = f
	s.closerMu.Unlock()
	return f, nil
}

func (s *Source) readLoop(ctx context.Context, r io.Reader, out chan<- *event.Event) {
	defer close(out)

	maxLine := s.config.maxLineSize()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)

	var lineNo int64
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		s.lines.Add(1)
		s.bytesRead.Add(int64(len(line)) + 1)

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		values, err := input.DecodeValues(line)
		if err != nil {
			s.parseErrors.Add(1)
			s.recordError(err)
			s.logger.Warn("Skipping malformed line", "line", lineNo, "error", err)
			continue
		}

		ev := event.New(values, event.WithOrigin(s.name))
		select {
		case out <- ev:
			s.events.Add(1)
			s.lastActivity.Store(time.Now().UnixNano())
			s.logger.Debug("Event emitted",
				"line", lineNo,
				"event_id", ev.ID,
				"values", ev.Len(),
				"batch", ev.IsBatch())
		case <-ctx.Done():
			s.logger.Debug("Reader input cancelled", "line", lineNo)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		wrapped := errors.WrapIO(err, "Source", "readLoop", "scan input")
		s.recordError(wrapped)
		s.logger.Error("Reader input failed", "line", lineNo+1, "error", err)
		return
	}

	s.logger.Info("Reader input exhausted",
		"lines", s.lines.Load(),
		"events", s.events.Load(),
		"parse_errors", s.parseErrors.Load())
}

// Insight records the outcome of an event
func (s *Source) Insight(insight event.Insight) {
	if insight.IsAck() {
		s.acks.Add(1)
		return
	}
	s.nacks.Add(1)
	s.logger.Warn("Event not delivered", "event_id", insight.EventID, "reason", insight.Reason)
}

// Insights returns the number of positive and negative insights received
func (s *Source) Insights() (acks, nacks int64) {
	return s.acks.Load(), s.nacks.Load()
}

// Close closes the input file. Standard input is left open.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closerMu.Lock()
		defer s.closerMu.Unlock()
		if s.closer != nil {
			if cerr := s.closer.Close(); cerr != nil {
				err = errors.WrapIO(cerr, "Source", "Close", "close input")
			}
		}
	})
	return err
}

func (s *Source) recordError(err error) {
	s.lastError.Store(err.Error())
}

// Meta returns component metadata
func (s *Source) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "input",
		Description: "Reads newline-delimited JSON from a file or standard input",
		Version:     "1.0.0",
	}
}

// ConfigSchema returns the configuration schema
func (s *Source) ConfigSchema() component.ConfigSchema {
	return readerSchema
}

// Health returns the current health status
func (s *Source) Health() component.HealthStatus {
	lastError, _ := s.lastError.Load().(string)

	var uptime time.Duration
	if started := s.startTime.Load(); started > 0 {
		uptime = time.Since(time.Unix(0, started))
	}

	return component.HealthStatus{
		Healthy:    s.started.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(s.parseErrors.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow returns average rates since Start
func (s *Source) DataFlow() component.FlowMetrics {
	var flow component.FlowMetrics

	events, parseErrors := s.events.Load(), s.parseErrors.Load()
	if events+parseErrors > 0 {
		flow.ErrorRate = float64(parseErrors) / float64(events+parseErrors)
	}
	if last := s.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}
	if started := s.startTime.Load(); started > 0 {
		if elapsed := time.Since(time.Unix(0, started)).Seconds(); elapsed > 0 {
			flow.MessagesPerSecond = float64(events) / elapsed
			flow.BytesPerSecond = float64(s.bytesRead.Load()) / elapsed
		}
	}
	return flow
}

// Register registers the reader input with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "reader",
		Factory:     NewInput,
		Schema:      readerSchema,
		Type:        "input",
		Protocol:    "ndjson",
		Description: "Newline-delimited JSON from a file or standard input",
		Version:     "1.0.0",
	})
}
