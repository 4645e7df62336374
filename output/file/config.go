package file

import (
	"strings"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
)

// Config holds configuration for the file output
type Config struct {
	// File is the path of the output file. It is created if absent and
	// truncated if present.
	File string `json:"file"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.File) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "file is required")
	}
	return nil
}

// fileSchema defines the configuration schema for the file output
var fileSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"file": {
			Type:        "string",
			Description: "Path of the output file; created if absent, truncated if present",
			Category:    "basic",
		},
	},
	Required: []string{"file"},
}
