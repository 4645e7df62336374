package input

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/c360/linesink/errors"
)

// DecodeValues turns one JSON document into the values of an event. A
// top-level array is a batch: each element becomes one value. Anything else
// is a single value. Numbers decode as json.Number so integers wider than a
// float64 mantissa survive re-encoding.
func DecodeValues(data []byte) ([]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "input", "DecodeValues", "empty document")
	}

	if trimmed[0] == '[' {
		var values []any
		if err := decode(trimmed, &values); err != nil {
			return nil, errors.WrapInvalid(err, "input", "DecodeValues", "unmarshal batch")
		}
		if values == nil {
			values = []any{}
		}
		return values, nil
	}

	var value any
	if err := decode(trimmed, &value); err != nil {
		return nil, errors.WrapInvalid(err, "input", "DecodeValues", "unmarshal value")
	}
	return []any{value}, nil
}

func decode(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return err
	}
	// One document per line; trailing data is a malformed line
	if _, err := dec.Token(); err != io.EOF {
		return errors.ErrInvalidData
	}
	return nil
}
