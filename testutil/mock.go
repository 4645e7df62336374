package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/sink"
)

// Common test errors
var (
	ErrMockFailed = errors.New("mock operation failed")
	ErrMockIO     = errors.New("mock i/o error")
	ErrMockEncode = errors.New("mock encode error")
)

// MockCodec is a codec whose Encode behavior is scripted by EncodeFunc.
// With no EncodeFunc it behaves like the JSON codec.
type MockCodec struct {
	mu sync.Mutex

	EncodeFunc  func(value any) ([]byte, error)
	EncodeCalls int
}

// FailOn returns a MockCodec that encodes as JSON but fails with ErrMockEncode
// on the n-th call, counting from 1.
func FailOn(n int) *MockCodec {
	m := &MockCodec{}
	json := codec.NewJSON()
	m.EncodeFunc = func(value any) ([]byte, error) {
		if m.EncodeCalls == n {
			return nil, ErrMockEncode
		}
		return json.Encode(value)
	}
	return m
}

// Name returns "mock"
func (m *MockCodec) Name() string { return "mock" }

// Encode runs EncodeFunc
func (m *MockCodec) Encode(value any) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EncodeCalls++
	if m.EncodeFunc != nil {
		return m.EncodeFunc(value)
	}
	return codec.NewJSON().Encode(value)
}

// MockSource is an in-memory event source. Tests push events with Send and
// end the stream with Finish; insights routed back are recorded.
type MockSource struct {
	name   string
	events chan *event.Event

	mu       sync.Mutex
	insights []event.Insight
	closed   bool
	finished bool

	StartErr error
}

// NewMockSource creates a source with a buffered event channel
func NewMockSource(name string, buffer int) *MockSource {
	return &MockSource{
		name:   name,
		events: make(chan *event.Event, buffer),
	}
}

// Name returns the source name
func (s *MockSource) Name() string { return s.name }

// Start returns the event channel, or StartErr
func (s *MockSource) Start(_ context.Context) (<-chan *event.Event, error) {
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	return s.events, nil
}

// Send queues an event
func (s *MockSource) Send(ev *event.Event) {
	s.events <- ev
}

// Finish closes the event stream
func (s *MockSource) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.events)
	}
}

// Insight records an insight
func (s *MockSource) Insight(insight event.Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, insight)
}

// Insights returns a copy of the recorded insights
func (s *MockSource) Insights() []event.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]event.Insight, len(s.insights))
	copy(result, s.insights)
	return result
}

// WaitForInsights polls until n insights have been recorded or timeout passes.
func (s *MockSource) WaitForInsights(n int, timeout time.Duration) []event.Insight {
	deadline := time.Now().Add(timeout)
	for {
		insights := s.Insights()
		if len(insights) >= n || time.Now().After(deadline) {
			return insights
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close marks the source closed
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockSink records every call made by a host. EventFunc scripts OnEvent; by
// default an auto-ack sink acknowledges every event and a non auto-ack sink
// returns no replies.
type MockSink struct {
	mu sync.Mutex

	InitFunc  func(ctx context.Context, args sink.InitArgs) error
	EventFunc func(ctx context.Context, ev *event.Event, c codec.Codec) ([]sink.Reply, error)
	Auto      bool

	InitArgs       sink.InitArgs
	Events         []*event.Event
	Codecs         []string
	Signals        []event.Signal
	InitCalls      int
	TerminateCalls int
}

// NewMockSink creates a sink with the given auto-ack behavior
func NewMockSink(autoAck bool) *MockSink {
	return &MockSink{Auto: autoAck}
}

// Init records args
func (m *MockSink) Init(ctx context.Context, args sink.InitArgs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitCalls++
	m.InitArgs = args
	if m.InitFunc != nil {
		return m.InitFunc(ctx, args)
	}
	return nil
}

// OnEvent records the event and the codec used
func (m *MockSink) OnEvent(ctx context.Context, ev *event.Event, c codec.Codec) ([]sink.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, ev)
	if c != nil {
		m.Codecs = append(m.Codecs, c.Name())
	}
	if m.EventFunc != nil {
		return m.EventFunc(ctx, ev, c)
	}
	if m.Auto {
		return []sink.Reply{sink.InsightReply(ev.InsightAck())}, nil
	}
	return nil, nil
}

// OnSignal records the signal
func (m *MockSink) OnSignal(_ context.Context, sig event.Signal) ([]sink.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Signals = append(m.Signals, sig)
	return nil, nil
}

// Terminate counts the call
func (m *MockSink) Terminate(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TerminateCalls++
}

// IsActive returns true
func (m *MockSink) IsActive() bool { return true }

// AutoAck returns Auto
func (m *MockSink) AutoAck() bool { return m.Auto }

// DefaultCodec returns "json"
func (m *MockSink) DefaultCodec() string { return codec.JSONName }

// Snapshot returns the number of events and signals seen and terminate calls
func (m *MockSink) Snapshot() (events, signals, terminates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events), len(m.Signals), m.TerminateCalls
}
