// Package postprocessor provides byte-level transforms applied to encoded values
// before they reach a sink's output.
package postprocessor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/linesink/errors"
)

// Postprocessor transforms one encoded buffer into zero or more packets.
type Postprocessor interface {
	// Name returns the registry name
	Name() string
	// Process transforms data. ingestNS is the ingest timestamp of the event
	// the data belongs to.
	Process(ingestNS uint64, data []byte) ([][]byte, error)
}

// Factory creates a fresh postprocessor. Stateful postprocessors get one
// instance per chain.
type Factory func() (Postprocessor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a postprocessor factory under name.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "postprocessor", "Register",
			"postprocessor name and factory validation")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return errors.WrapConfiguration(
			fmt.Errorf("postprocessor %q is already registered", name), "postprocessor", "Register", "duplicate check")
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

// Lookup creates the postprocessor registered under name.
func Lookup(name string) (Postprocessor, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.WrapConfiguration(
			fmt.Errorf("%w: %q", errors.ErrUnknownPostprocessor, name), "postprocessor", "Lookup", "postprocessor lookup")
	}

	pp, err := factory()
	if err != nil {
		return nil, errors.WrapConfiguration(err, "postprocessor", "Lookup", fmt.Sprintf("create %s", name))
	}
	return pp, nil
}

// Names returns the registered postprocessor names in sorted order.
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

// Chain is an ordered sequence of postprocessors.
type Chain []Postprocessor

// Make builds a chain from postprocessor names, in declared order.
// Any unknown name fails the whole chain with a configuration error.
func Make(names []string) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		pp, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, pp)
	}
	return chain, nil
}

// Names returns the names of the chain's steps.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, pp := range c {
		names[i] = pp.Name()
	}
	return names
}

// Apply runs data through every step. Each packet produced by a step is fed
// independently to the next one; the final packets are returned in order.
// An empty chain returns data as the single packet.
func (c Chain) Apply(ingestNS uint64, data []byte) ([][]byte, error) {
	packets := [][]byte{data}
	for _, pp := range c {
		next := make([][]byte, 0, len(packets))
		for _, packet := range packets {
			out, err := pp.Process(ingestNS, packet)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pp.Name(), err)
			}
			next = append(next, out...)
		}
		packets = next
	}
	return packets, nil
}
