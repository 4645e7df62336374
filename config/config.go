package config

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/postprocessor"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LINESINK"

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

// Config is the complete application configuration
type Config struct {
	Sink           SinkConfig    `yaml:"sink"`
	Input          InputConfig   `yaml:"input"`
	Metrics        MetricsConfig `yaml:"metrics"`
	Log            LogConfig     `yaml:"log"`
	SignalInterval time.Duration `yaml:"signal_interval"` // zero disables tick signals
}

// SinkConfig selects the sink and how events are serialized for it.
// Config is handed to the sink factory as JSON.
type SinkConfig struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"type"`
	Codec          string         `yaml:"codec,omitempty"` // empty uses the sink's default
	Postprocessors []string       `yaml:"postprocessors,omitempty"`
	Config         map[string]any `yaml:"config,omitempty"`
}

// InputConfig selects the event source
type InputConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when a field is absent from every layer
func Default() *Config {
	return &Config{
		Sink: SinkConfig{
			ID:   "linesink",
			Type: "file",
		},
		Input: InputConfig{
			Type: "reader",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sink.Type) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "sink.type is required")
	}
	if strings.TrimSpace(c.Sink.ID) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "sink.id is required")
	}
	if c.Sink.Codec != "" {
		if _, err := codec.Lookup(c.Sink.Codec); err != nil {
			return errors.WrapConfiguration(err, "Config", "Validate", "sink.codec")
		}
	}
	if _, err := postprocessor.Make(c.Sink.Postprocessors); err != nil {
		return errors.WrapConfiguration(err, "Config", "Validate", "sink.postprocessors")
	}

	if strings.TrimSpace(c.Input.Type) == "" {
		return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "input.type is required")
	}

	if c.SignalInterval < 0 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "signal_interval is negative")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return errors.WrapConfiguration(errors.ErrMissingConfig, "Config", "Validate", "metrics.addr is required")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "metrics.path must start with /")
		}
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "log.level "+c.Log.Level)
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Log.Format)) {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "Config", "Validate", "log.format "+c.Log.Format)
	}
	return nil
}

// SinkURL locates the sink for logs
func (c *Config) SinkURL() string {
	return "linesink://localhost/sink/" + c.Sink.Type + "/" + c.Sink.ID
}

// RawConfig renders the sink settings as the JSON a component factory expects
func (s SinkConfig) RawConfig() (json.RawMessage, error) {
	return rawJSON(s.Config, "SinkConfig")
}

// RawConfig renders the input settings as the JSON a component factory
// expects. Absent settings yield nil so the factory applies its defaults.
func (i InputConfig) RawConfig() (json.RawMessage, error) {
	return rawJSON(i.Config, "InputConfig")
}

func rawJSON(settings map[string]any, owner string) (json.RawMessage, error) {
	if len(settings) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, errors.WrapConfiguration(err, owner, "RawConfig", "marshal settings")
	}
	return data, nil
}

// String returns the YAML form of the configuration
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
