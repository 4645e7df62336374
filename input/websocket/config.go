package websocket

import (
	"fmt"
	"strings"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

// Config holds configuration for the WebSocket input
type Config struct {
	Addr              string      `json:"addr"`
	Path              string      `json:"path"`
	MaxConnections    int         `json:"max_connections"`
	ReadBufferSize    int         `json:"read_buffer_size"`
	WriteBufferSize   int         `json:"write_buffer_size"`
	EnableCompression bool        `json:"enable_compression"`
	QueueSize         int         `json:"queue_size"`
	Auth              *AuthConfig `json:"auth,omitempty"`
}

// AuthConfig holds authentication configuration. Secrets are read from the
// named environment variables at connection time.
type AuthConfig struct {
	Type             string `json:"type"` // none, bearer, basic
	BearerTokenEnv   string `json:"bearer_token_env,omitempty"`
	BasicUsernameEnv string `json:"basic_username_env,omitempty"`
	BasicPasswordEnv string `json:"basic_password_env,omitempty"`
}

// DefaultConfig returns the default configuration for the WebSocket input
func DefaultConfig() Config {
	return Config{
		Addr:              ":8081",
		Path:              "/ws",
		MaxConnections:    100,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: true,
		QueueSize:         1000,
		Auth:              &AuthConfig{Type: "none"},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "addr is required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.WrapConfiguration(fmt.Errorf("path must start with /, got %q", c.Path),
			"Config", "Validate", "path check")
	}
	if c.MaxConnections < 0 || c.QueueSize < 0 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "negative limit")
	}
	if c.Auth != nil {
		switch c.Auth.Type {
		case "", "none":
		case "bearer":
			if c.Auth.BearerTokenEnv == "" {
				return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "bearer_token_env is required")
			}
		case "basic":
			if c.Auth.BasicUsernameEnv == "" || c.Auth.BasicPasswordEnv == "" {
				return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate",
					"basic_username_env and basic_password_env are required")
			}
		default:
			return errors.WrapConfiguration(fmt.Errorf("unknown auth type %q", c.Auth.Type),
				"Config", "Validate", "auth type check")
		}
	}
	return nil
}

var websocketInputSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"addr": {
			Type:        "string",
			Description: "Listen address",
			Default:     ":8081",
			Category:    "basic",
		},
		"path": {
			Type:        "string",
			Description: "WebSocket endpoint path",
			Default:     "/ws",
			Category:    "basic",
		},
		"max_connections": {
			Type:        "int",
			Description: "Maximum concurrent connections (0 = unlimited)",
			Default:     100,
			Category:    "advanced",
		},
		"read_buffer_size": {
			Type:        "int",
			Description: "WebSocket read buffer size",
			Default:     4096,
			Category:    "advanced",
		},
		"write_buffer_size": {
			Type:        "int",
			Description: "WebSocket write buffer size",
			Default:     4096,
			Category:    "advanced",
		},
		"enable_compression": {
			Type:        "bool",
			Description: "Negotiate per-message compression",
			Default:     true,
			Category:    "advanced",
		},
		"queue_size": {
			Type:        "int",
			Description: "Events buffered between connections and the sink",
			Default:     1000,
			Category:    "advanced",
		},
		"auth": {
			Type:        "object",
			Description: "Authentication: type none, bearer or basic, with secrets taken from environment variables",
			Category:    "advanced",
		},
	},
	Required: []string{"addr"},
}
