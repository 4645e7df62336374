// Package input defines the event sources that feed a sink.
//
// Implementations live in subpackages: reader (newline-delimited JSON from a
// file or stdin), nats (a NATS subject) and websocket (an HTTP endpoint
// speaking a small JSON envelope protocol).
package input

import (
	"context"

	"github.com/c360/linesink/event"
)

// Source produces events and receives the insights derived from them.
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string

	// Start begins producing events. The channel is closed when the source is
	// exhausted or ctx is cancelled.
	Start(ctx context.Context) (<-chan *event.Event, error)

	// Insight reports the outcome of an event back to the source. It must not
	// block for long; sources that answer over the network do so asynchronously
	// or with a write deadline.
	Insight(insight event.Insight)

	// Close releases the source's resources.
	Close() error
}
