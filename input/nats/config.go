package nats

import (
	"strings"
	"time"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/pkg/retry"
)

// Config holds configuration for the NATS input
type Config struct {
	URL             string `json:"url"`
	Subject         string `json:"subject"`
	Queue           string `json:"queue,omitempty"`
	BufferSize      int    `json:"buffer_size"`
	ClientName      string `json:"client_name,omitempty"`
	TokenEnv        string `json:"token_env,omitempty"`
	ConnectAttempts int    `json:"connect_attempts,omitempty"`
}

// DefaultConfig returns the default configuration for the NATS input
func DefaultConfig() Config {
	return Config{
		URL:             "nats://localhost:4222",
		BufferSize:      256,
		ClientName:      "linesink",
		ConnectAttempts: 3,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "subject is required")
	}
	if strings.ContainsAny(c.Subject, " \t\r\n") {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "subject contains whitespace")
	}
	if c.BufferSize < 0 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "buffer_size is negative")
	}
	if c.ConnectAttempts < 0 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "connect_attempts is negative")
	}
	return nil
}

func (c *Config) connectRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.ConnectAttempts
	cfg.InitialDelay = 250 * time.Millisecond
	return cfg
}

var natsInputSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"url": {
			Type:        "string",
			Description: "NATS server URL; ignored when a connection is supplied by the host",
			Default:     "nats://localhost:4222",
			Category:    "basic",
		},
		"subject": {
			Type:        "string",
			Description: "Subject to subscribe to; wildcards allowed",
			Category:    "basic",
		},
		"queue": {
			Type:        "string",
			Description: "Queue group for load-balanced consumption",
			Category:    "advanced",
		},
		"buffer_size": {
			Type:        "int",
			Description: "Messages buffered between the subscription and the sink",
			Default:     256,
			Category:    "advanced",
		},
		"client_name": {
			Type:        "string",
			Description: "Connection name reported to the server",
			Default:     "linesink",
			Category:    "advanced",
		},
		"connect_attempts": {
			Type:        "int",
			Description: "Dial attempts, with exponential backoff, before Start fails",
			Default:     3,
			Category:    "advanced",
		},
		"token_env": {
			Type:        "string",
			Description: "Environment variable holding an authentication token",
			Category:    "advanced",
		},
	},
	Required: []string{"subject"},
}
