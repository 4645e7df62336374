package event

import "time"

// InsightKind distinguishes acknowledgments from rejections.
type InsightKind int

const (
	// InsightAck reports that the event was delivered
	InsightAck InsightKind = iota
	// InsightFail reports that the event was not delivered
	InsightFail
)

// String returns the wire name used by inputs when answering their peers
func (k InsightKind) String() string {
	switch k {
	case InsightAck:
		return "ack"
	case InsightFail:
		return "nack"
	default:
		return "unknown"
	}
}

// Insight is a delivery signal routed from a sink back to the input that
// produced the event.
type Insight struct {
	EventID   string      `json:"id"`
	Origin    string      `json:"origin,omitempty"`
	Kind      InsightKind `json:"-"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsAck reports whether the insight acknowledges delivery.
func (i Insight) IsAck() bool {
	return i.Kind == InsightAck
}

// SignalKind enumerates control-plane signals.
type SignalKind int

const (
	// SignalTick is emitted periodically by the host engine
	SignalTick SignalKind = iota
	// SignalDrain is emitted once before the engine terminates the sink
	SignalDrain
)

// String returns the signal name
func (k SignalKind) String() string {
	switch k {
	case SignalTick:
		return "tick"
	case SignalDrain:
		return "drain"
	default:
		return "unknown"
	}
}

// Signal is a control-plane message distinct from data events.
type Signal struct {
	Kind     SignalKind
	IngestNS uint64
}

// NewSignal creates a signal stamped with the current time.
func NewSignal(kind SignalKind) Signal {
	return Signal{Kind: kind, IngestNS: uint64(time.Now().UnixNano())}
}
