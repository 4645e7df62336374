// Package event defines the unit of data flowing into a sink and the insights
// a sink sends back upstream about it.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event carries one or more structured values plus delivery metadata.
//
// An event is created by an input and read by a sink. Sinks never modify it;
// they iterate its values and derive an Insight from it.
//
// Construction uses functional options:
//
//	ev := event.New([]any{map[string]any{"a": 1}})
//	ev := event.New(values, event.WithOrigin("websocket"), event.WithIngestTime(t))
type Event struct {
	// ID identifies the event across the pipeline. Insights carry it back.
	ID string `json:"id"`

	// IngestNS is the ingest timestamp in nanoseconds since the Unix epoch.
	IngestNS uint64 `json:"ingest_ns"`

	// Values holds the structured values in delivery order. A batched event
	// carries more than one.
	Values []any `json:"values"`

	// Origin names the input that produced the event.
	Origin string `json:"origin,omitempty"`
}

// Option is a functional option for configuring Event construction.
type Option func(*Event)

// WithID replaces the generated identifier. Inputs whose transport already
// carries a message ID use it so acknowledgments can be correlated.
func WithID(id string) Option {
	return func(e *Event) {
		if id != "" {
			e.ID = id
		}
	}
}

// WithIngestTime sets a specific ingest time instead of time.Now().
func WithIngestTime(t time.Time) Option {
	return func(e *Event) {
		e.IngestNS = uint64(t.UnixNano())
	}
}

// WithOrigin records the input that produced the event.
func WithOrigin(origin string) Option {
	return func(e *Event) {
		e.Origin = origin
	}
}

// New creates an event holding values, stamped with a fresh ID and the
// current ingest time.
func New(values []any, opts ...Option) *Event {
	e := &Event{
		ID:       uuid.New().String(),
		IngestNS: uint64(time.Now().UnixNano()),
		Values:   values,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Len returns the number of values carried by the event.
func (e *Event) Len() int {
	return len(e.Values)
}

// IsBatch reports whether the event carries more than one value.
func (e *Event) IsBatch() bool {
	return len(e.Values) > 1
}

// IngestTime returns the ingest timestamp as a time.Time.
func (e *Event) IngestTime() time.Time {
	return time.Unix(0, int64(e.IngestNS))
}

// InsightAck derives a positive acknowledgment: the event was durably delivered.
func (e *Event) InsightAck() Insight {
	return Insight{
		EventID:   e.ID,
		Origin:    e.Origin,
		Kind:      InsightAck,
		Timestamp: time.Now(),
	}
}

// InsightFail derives a negative acknowledgment carrying the failure reason.
func (e *Event) InsightFail(reason string) Insight {
	return Insight{
		EventID:   e.ID,
		Origin:    e.Origin,
		Kind:      InsightFail,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}
