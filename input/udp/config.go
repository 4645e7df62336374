package udp

import (
	"net"
	"strings"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

const (
	// DefaultMaxDatagramSize covers any IPv4 UDP payload
	DefaultMaxDatagramSize = 65507
	socketBufferSize       = 2 * 1024 * 1024
)

// Config holds configuration for the UDP input
type Config struct {
	Address         string `json:"address"`
	MaxDatagramSize int    `json:"max_datagram_size,omitempty"`
	BufferSize      int    `json:"buffer_size"`
}

// DefaultConfig returns the default configuration for the UDP input
func DefaultConfig() Config {
	return Config{
		Address:         "0.0.0.0:5514",
		MaxDatagramSize: DefaultMaxDatagramSize,
		BufferSize:      1024,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "address is required")
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return errors.WrapConfiguration(err, "Config", "Validate", "address parsing")
	}
	if c.MaxDatagramSize < 0 || c.MaxDatagramSize > DefaultMaxDatagramSize {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "max_datagram_size out of range")
	}
	if c.BufferSize < 1 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "buffer_size must be positive")
	}
	return nil
}

func (c *Config) maxDatagramSize() int {
	if c.MaxDatagramSize == 0 {
		return DefaultMaxDatagramSize
	}
	return c.MaxDatagramSize
}

var udpSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"address": {
			Type:        "string",
			Description: "host:port to bind; port 0 picks a free port",
			Default:     "0.0.0.0:5514",
			Category:    "basic",
		},
		"max_datagram_size": {
			Type:        "int",
			Description: "Largest datagram accepted; longer ones are truncated by the socket",
			Default:     DefaultMaxDatagramSize,
			Category:    "advanced",
		},
		"buffer_size": {
			Type:        "int",
			Description: "Events queued ahead of the sink; datagrams arriving while full are dropped",
			Default:     1024,
			Category:    "advanced",
		},
	},
	Required: []string{"address"},
}
