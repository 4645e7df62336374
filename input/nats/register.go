package nats

import (
	"encoding/json"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

// CreateInput is the factory function for the NATS input. Settings absent
// from rawConfig keep their defaults; subject is required.
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()
	if len(rawConfig) == 0 {
		return nil, errors.WrapConfiguration(errors.ErrMissingConfig, "nats-input-factory", "create", "config presence check")
	}
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "nats-input-factory", "create", "secure config parsing")
	}

	in, err := NewInput("nats", cfg, deps)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Register registers the NATS input with the registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "nats",
		Factory:     CreateInput,
		Schema:      natsInputSchema,
		Type:        "input",
		Protocol:    "nats",
		Description: "NATS subscriber with request/reply acknowledgments",
		Version:     "1.0.0",
	})
}
