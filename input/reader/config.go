package reader

import (
	"fmt"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

// Stdin is the path that selects standard input
const Stdin = "-"

// DefaultMaxLineSize bounds a single input line
const DefaultMaxLineSize = 1024 * 1024

// Config holds configuration for the reader input
type Config struct {
	// Path of a newline-delimited JSON file. Empty or "-" reads standard input.
	Path string `json:"path,omitempty"`

	// MaxLineSize is the longest accepted line in bytes. Zero uses DefaultMaxLineSize.
	MaxLineSize int `json:"max_line_size,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.MaxLineSize < 0 {
		return errors.WrapConfiguration(fmt.Errorf("max_line_size must be non-negative, got %d", c.MaxLineSize),
			"Config", "Validate", "max_line_size check")
	}
	return nil
}

func (c *Config) maxLineSize() int {
	if c.MaxLineSize > 0 {
		return c.MaxLineSize
	}
	return DefaultMaxLineSize
}

func (c *Config) isStdin() bool {
	return c.Path == "" || c.Path == Stdin
}

var readerSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"path": {
			Type:        "string",
			Description: "Newline-delimited JSON file to read; empty or - reads standard input",
			Default:     Stdin,
			Category:    "basic",
		},
		"max_line_size": {
			Type:        "int",
			Description: "Longest accepted line in bytes",
			Default:     DefaultMaxLineSize,
			Category:    "advanced",
		},
	},
}
