// Package componentregistry registers every linesink component factory.
package componentregistry

import (
	"errors"

	"github.com/c360/linesink/component"
	pkgerrors "github.com/c360/linesink/errors"
	natsinput "github.com/c360/linesink/input/nats"
	"github.com/c360/linesink/input/reader"
	"github.com/c360/linesink/input/udp"
	websocketinput "github.com/c360/linesink/input/websocket"
	"github.com/c360/linesink/output/file"
)

// Register registers all components with the provided registry:
//
//   - file output (the line sink)
//   - reader input (NDJSON from a file or stdin)
//   - nats input (subject subscription with request/reply acks)
//   - websocket input (envelope protocol with ack/nack)
//   - udp input (NDJSON datagrams)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	registrations := []struct {
		what     string
		register func(*component.Registry) error
	}{
		{"file output", file.Register},
		{"reader input", reader.Register},
		{"NATS input", natsinput.Register},
		{"WebSocket input", websocketinput.Register},
		{"UDP input", udp.Register},
	}

	for _, r := range registrations {
		if err := r.register(registry); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", r.what+" registration")
		}
	}
	return nil
}
