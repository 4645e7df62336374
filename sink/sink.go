// Package sink defines the contract between a host engine and a terminal
// output stage.
//
// A host drives a Sink one call at a time:
//
//	Init → OnEvent* / OnSignal* → Terminate
//
// Implementations need no internal locking for these calls.
package sink

import (
	"context"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/event"
)

// InitArgs carries what a sink needs to become active.
type InitArgs struct {
	// SinkID is the instance name assigned by the host
	SinkID string
	// SinkURL locates the instance in the host's topology, for logs
	SinkURL string
	// Postprocessors names the byte-level transforms applied after encoding, in order
	Postprocessors []string
}

// Reply is a message a sink sends back to the host after handling an event
// or signal. Only insights are defined.
type Reply struct {
	Insight *event.Insight
}

// InsightReply wraps an insight in a Reply.
func InsightReply(insight event.Insight) Reply {
	return Reply{Insight: &insight}
}

// Sink is a terminal stage of an event pipeline.
type Sink interface {
	// Init prepares the sink for events. It is called once.
	Init(ctx context.Context, args InitArgs) error

	// OnEvent writes every value of ev using c. On success the returned replies
	// acknowledge the event; on error nothing is acknowledged.
	OnEvent(ctx context.Context, ev *event.Event, c codec.Codec) ([]Reply, error)

	// OnSignal handles a control-plane signal.
	OnSignal(ctx context.Context, sig event.Signal) ([]Reply, error)

	// Terminate releases the sink's resources. It never fails.
	Terminate(ctx context.Context)

	// IsActive reports whether the sink accepts events.
	IsActive() bool

	// AutoAck reports whether the sink emits its own acknowledgments.
	AutoAck() bool

	// DefaultCodec names the codec used when the host does not choose one.
	DefaultCodec() string
}
