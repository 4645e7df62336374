package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/linesink/errors"
)

const (
	maxConfigSize = 1 << 20 // config files are small; anything larger is a mistake
	maxDepth      = 32
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

// validateConfigPath does basic path validation
func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	// Relative paths must stay within the working directory once resolved
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		absPath, err := filepath.Abs(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("cannot resolve absolute path: %w", err)
		}
		rel, err := filepath.Rel(cwd, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("only YAML config files allowed: %s", path)
	}
}

// safeReadFile reads a config file with size and type checks
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, errors.WrapConfiguration(err, "config", "safeReadFile", "validate path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapIO(err, "config", "safeReadFile", "stat")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapConfiguration(fmt.Errorf("not a regular file: %s", path),
			"config", "safeReadFile", "stat")
	}
	if info.Size() > maxConfigSize {
		return nil, errors.WrapConfiguration(
			fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize),
			"config", "safeReadFile", "size check")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, "config", "safeReadFile", "read")
	}
	return data, nil
}

// validateEnvVar does basic environment variable validation
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateDepth bounds the nesting of a decoded document. YAML anchors can
// make a small file expand into a deep structure.
func validateDepth(v any, depth int) error {
	if depth > maxDepth {
		return errors.WrapConfiguration(fmt.Errorf("nesting too deep: > %d", maxDepth),
			"config", "validateDepth", "depth check")
	}
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if err := validateDepth(child, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := validateDepth(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
