package codec

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAMLName is the registry name of the YAML codec.
const YAMLName = "yaml"

// YAML encodes values as flow-style YAML (`{a: 1, b: [x, y]}`) so that small
// values stay on one line.
type YAML struct{}

// Name returns "yaml"
func (YAML) Name() string { return YAMLName }

// Encode marshals value in flow style without a trailing newline.
func (YAML) Encode(value any) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(yamlNumbers(value)); err != nil {
		return nil, err
	}
	flowStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(out, []byte{'\n'}), nil
}

func flowStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style |= yaml.FlowStyle
	}
	for _, child := range n.Content {
		flowStyle(child)
	}
}

// yamlNumbers replaces json.Number, which yaml.v3 would quote as a string,
// with the widest native number that holds it.
func yamlNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return u
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return string(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = yamlNumbers(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = yamlNumbers(elem)
		}
		return out
	default:
		return value
	}
}
