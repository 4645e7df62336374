// Package component provides the component infrastructure shared by linesink
// inputs and outputs: discovery, registration, dependency injection, and
// config validation.
//
// # Component Registration Pattern
//
// Components are registered explicitly rather than through init() side effects:
//
//  1. Each component package exports a Register(*Registry) error function
//  2. componentregistry.RegisterAll() orchestrates all registrations
//  3. the CLI calls RegisterAll() with a freshly created Registry
//
// Example component registration:
//
//	func Register(registry *component.Registry) error {
//		return registry.RegisterWithConfig(component.RegistrationConfig{
//			Name:        "file",
//			Factory:     NewOutput,
//			Schema:      fileSchema,
//			Type:        "output",
//			Protocol:    "file",
//			Description: "Line-oriented file output",
//			Version:     "1.0.0",
//		})
//	}
//
// # Factories
//
// A Factory receives raw JSON config and Dependencies, parses its config with
// SafeUnmarshal, and returns a Discoverable. Factories do no I/O.
package component
