package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/linesink/errors"
)

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  EnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// Load reads a single file, applies environment overrides and validates
func Load(path string) (*Config, error) {
	return NewLoader().LoadFile(path)
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and the environment, in that order
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	for _, path := range l.layers {
		raw, err := l.loadRawYAML(path)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, raw)
	}

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (l *Loader) loadRawYAML(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapConfiguration(err, "Loader", "loadRawYAML", "parse YAML")
	}
	if err := validateDepth(raw, 0); err != nil {
		return nil, err
	}
	return raw, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "toMap", "marshal defaults")
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapFatal(err, "Loader", "toMap", "unmarshal defaults")
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.WrapConfiguration(err, "Loader", "fromMap", "marshal merged layers")
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.WrapConfiguration(err, "Loader", "fromMap", "decode configuration")
	}
	return &cfg, nil
}

// applyEnvOverrides applies LINESINK_* environment variables
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"SINK_ID":      &cfg.Sink.ID,
		"SINK_TYPE":    &cfg.Sink.Type,
		"SINK_CODEC":   &cfg.Sink.Codec,
		"INPUT_TYPE":   &cfg.Input.Type,
		"METRICS_ADDR": &cfg.Metrics.Addr,
		"METRICS_PATH": &cfg.Metrics.Path,
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FORMAT":   &cfg.Log.Format,
	}
	for suffix, field := range strs {
		val, ok, err := l.env(suffix)
		if err != nil {
			return err
		}
		if ok {
			*field = val
		}
	}

	if val, ok, err := l.env("SINK_POSTPROCESSORS"); err != nil {
		return err
	} else if ok {
		cfg.Sink.Postprocessors = splitList(val)
	}

	// The file sink is common enough to get its own override
	if val, ok, err := l.env("SINK_FILE"); err != nil {
		return err
	} else if ok {
		if cfg.Sink.Config == nil {
			cfg.Sink.Config = make(map[string]any)
		}
		cfg.Sink.Config["file"] = val
	}

	if val, ok, err := l.env("METRICS_ENABLED"); err != nil {
		return err
	} else if ok {
		enabled, perr := strconv.ParseBool(val)
		if perr != nil {
			return errors.WrapConfiguration(perr, "Loader", "applyEnvOverrides", l.envPrefix+"_METRICS_ENABLED")
		}
		cfg.Metrics.Enabled = enabled
	}

	if val, ok, err := l.env("SIGNAL_INTERVAL"); err != nil {
		return err
	} else if ok {
		d, perr := time.ParseDuration(val)
		if perr != nil {
			return errors.WrapConfiguration(perr, "Loader", "applyEnvOverrides", l.envPrefix+"_SIGNAL_INTERVAL")
		}
		cfg.SignalInterval = d
	}
	return nil
}

// env returns a non-empty override for suffix
func (l *Loader) env(suffix string) (string, bool, error) {
	key := l.envPrefix + "_" + suffix
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, errors.WrapConfiguration(err, "Loader", "env", key)
	}
	return val, true, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
