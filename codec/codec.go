// Package codec turns structured event values into bytes.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/linesink/errors"
)

// Codec encodes a single structured value.
type Codec interface {
	// Name returns the registry name of the codec
	Name() string
	// Encode serializes value. Implementations must not retain value.
	Encode(value any) ([]byte, error)
}

// Factory creates a codec instance.
type Factory func() Codec

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	MustRegister(JSONName, func() Codec { return NewJSON() })
	MustRegister(StringName, func() Codec { return String{} })
	MustRegister(YAMLName, func() Codec { return YAML{} })
}

// Register adds a codec factory under name.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "codec", "Register", "codec name and factory validation")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return errors.WrapConfiguration(
			fmt.Errorf("codec %q is already registered", name), "codec", "Register", "duplicate codec check")
	}
	registry[name] = factory
	return nil
}

// MustRegister is Register that panics on error. Intended for init functions.
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns a new instance of the codec registered under name.
func Lookup(name string) (Codec, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.WrapConfiguration(
			fmt.Errorf("%w: %q", errors.ErrUnknownCodec, name), "codec", "Lookup", "codec lookup")
	}
	return factory(), nil
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
