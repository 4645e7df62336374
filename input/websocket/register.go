package websocket

import (
	"encoding/json"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

// CreateInput is the factory function for the WebSocket input. Settings
// absent from rawConfig keep their defaults.
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "websocket-input-factory", "create", "secure config parsing")
	}

	in, err := NewInput("websocket", cfg, deps)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Register registers the WebSocket input with the registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "websocket",
		Factory:     CreateInput,
		Schema:      websocketInputSchema,
		Type:        "input",
		Protocol:    "websocket",
		Description: "WebSocket server accepting data envelopes and answering with ack/nack",
		Version:     "1.0.0",
	})
}
