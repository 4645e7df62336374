package codec

import (
	"fmt"

	"github.com/c360/linesink/errors"
)

// StringName is the registry name of the string codec.
const StringName = "string"

// String writes string and byte-slice values verbatim. Anything else is rejected.
type String struct{}

// Name returns "string"
func (String) Name() string { return StringName }

// Encode returns the raw bytes of a string or []byte value.
func (String) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("%w: string codec cannot encode %T", errors.ErrUnsupportedValue, value)
	}
}
