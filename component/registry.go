package component

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/linesink/errors"
)

// Factory creates a component instance from configuration.
// The factory receives raw JSON configuration and dependencies, parses its own
// config, and returns a component implementing Discoverable. Factories do no I/O;
// files and connections are opened by the component's own lifecycle methods.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)

// Registration holds factory and metadata for a component type
type Registration struct {
	Name        string       `json:"name"`        // Factory name (e.g., "file")
	Type        string       `json:"type"`        // Component type (input/output)
	Protocol    string       `json:"protocol"`    // Technical protocol (file, nats, websocket, stdin)
	Description string       `json:"description"` // Human-readable description
	Version     string       `json:"version"`     // Component version
	Schema      ConfigSchema `json:"schema"`      // Static config schema
	Factory     Factory      `json:"-"`           // Factory function (not serializable)
}

// RegistrationConfig provides the registration API; it maps 1:1 to Registration.
type RegistrationConfig struct {
	Name        string
	Factory     Factory
	Schema      ConfigSchema
	Type        string
	Protocol    string
	Description string
	Version     string
}

// Registry manages component factories.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
	}
}

// RegisterWithConfig registers a component factory.
//
// Example usage:
//
//	registry.RegisterWithConfig(component.RegistrationConfig{
//	    Name:        "file",
//	    Factory:     NewOutput,
//	    Schema:      fileSchema,
//	    Type:        "output",
//	    Protocol:    "file",
//	    Description: "Writes each encoded value as a line to a local file",
//	    Version:     "1.0.0",
//	})
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	return r.RegisterFactory(config.Name, &Registration{
		Name:        config.Name,
		Type:        config.Type,
		Protocol:    config.Protocol,
		Description: config.Description,
		Version:     config.Version,
		Schema:      config.Schema,
		Factory:     config.Factory,
	})
}

// RegisterFactory registers a component factory with the given name.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) RegisterFactory(name string, registration *Registration) error {
	if err := ValidateComponentName(name); err != nil {
		return errors.Wrap(err, "Registry", "RegisterFactory", "factory name validation")
	}
	if registration == nil || registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "component type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		msg := fmt.Errorf("factory '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[name] = registration
	return nil
}

// CreateComponent creates a component of the given factory name and type.
// An empty componentType skips the type check.
func (r *Registry) CreateComponent(
	name, componentType string, rawConfig json.RawMessage, deps Dependencies,
) (Discoverable, error) {
	if err := ValidateComponentName(name); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory name validation")
	}
	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "config validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapConfiguration(
			fmt.Errorf("%w: '%s'", errors.ErrUnknownComponent, name), "Registry", "CreateComponent", "factory lookup")
	}

	if componentType != "" && registration.Type != componentType {
		msg := fmt.Errorf("component '%s' is type '%s', not '%s'", name, registration.Type, componentType)
		return nil, errors.WrapConfiguration(msg, "Registry", "CreateComponent", "type validation")
	}

	component, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory execution")
	}
	return component, nil
}

// GetComponentSchema returns the static schema registered for a factory.
func (r *Registry) GetComponentSchema(name string) (ConfigSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.factories[name]
	if !exists {
		return ConfigSchema{}, errors.WrapInvalid(
			fmt.Errorf("component type %q not found", name),
			"Registry", "GetComponentSchema", "type lookup")
	}
	return registration.Schema, nil
}

// ListFactories returns a copy of all registrations without their factory functions.
func (r *Registry) ListFactories() map[string]*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Registration, len(r.factories))
	for name, registration := range r.factories {
		copied := *registration
		copied.Factory = nil
		result[name] = &copied
	}
	return result
}

// ListComponentTypes returns the registered factory names in sorted order
func (r *Registry) ListComponentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
