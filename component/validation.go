package component

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/c360/linesink/errors"
)

// Config validation limits
const (
	MaxStringLength = 4096        // Maximum length for string values; covers PATH_MAX
	MaxJSONSize     = 1024 * 1024 // Maximum JSON size (1MB)
	MaxDepth        = 10          // Maximum nesting depth
	MaxArraySize    = 1000        // Maximum array length
)

// ConfigValidator provides validation for raw component configurations
type ConfigValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewConfigValidator creates a validator with the package limits
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxDepth:     MaxDepth,
		maxArraySize: MaxArraySize,
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateConfig checks size, nesting, and string content of raw JSON config.
func (v *ConfigValidator) ValidateConfig(rawConfig json.RawMessage) error {
	if len(rawConfig) > v.maxJSONSize {
		return errors.WrapConfiguration(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), v.maxJSONSize),
			"ConfigValidator", "ValidateConfig", "size check")
	}

	// Empty config is left to the component to judge
	if len(rawConfig) == 0 {
		return nil
	}

	var config any
	decoder := json.NewDecoder(bytes.NewReader(rawConfig))
	decoder.UseNumber()

	if err := decoder.Decode(&config); err != nil {
		return errors.WrapConfiguration(err, "ConfigValidator", "ValidateConfig", "JSON parsing")
	}

	return v.validateValue(config, 0)
}

func (v *ConfigValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapConfiguration(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ConfigValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		return v.validateString(val)

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapConfiguration(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ConfigValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("array element %d", i))
			}
		}

	case map[string]any:
		for key, elem := range val {
			if err := v.validateString(key); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", "key validation")
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("object field '%s'", key))
			}
		}
	}

	return nil
}

func (v *ConfigValidator) validateString(s string) error {
	if len(s) > v.maxStringLen {
		return errors.WrapConfiguration(
			fmt.Errorf("string length %d exceeds maximum %d", len(s), v.maxStringLen),
			"ConfigValidator", "validateString", "string length check")
	}
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapConfiguration(
				fmt.Errorf("string contains control character: 0x%02x", r),
				"ConfigValidator", "validateString", "control character check")
		}
	}
	return nil
}

// ValidateFactoryConfig validates raw config before it is passed to a factory
func ValidateFactoryConfig(rawConfig json.RawMessage) error {
	return NewConfigValidator().ValidateConfig(rawConfig)
}

// Validatable is implemented by configs that can self-validate
type Validatable interface {
	Validate() error
}

// SafeUnmarshal validates raw JSON, unmarshals it into target, and runs
// target's Validate method if it has one. Unknown fields are ignored.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "config validation")
	}

	if len(rawConfig) == 0 {
		return nil
	}

	if reflect.TypeOf(target).Kind() != reflect.Ptr {
		return errors.WrapConfiguration(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	if err := json.Unmarshal(rawConfig, target); err != nil {
		return errors.WrapConfiguration(err, "ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}

	return nil
}

// ValidateComponentName allows alphanumerics, dash, underscore and dot
func ValidateComponentName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName", "empty name")
	}
	if len(name) > MaxStringLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName",
				"invalid name characters")
		}
	}
	return nil
}
