package codec

import (
	"bytes"
	"encoding/json"
)

// JSONName is the registry name of the JSON codec.
const JSONName = "json"

// JSON encodes values as compact single-line JSON. HTML characters are not
// escaped, so `<` stays `<` in the output file.
type JSON struct{}

// NewJSON returns the JSON codec.
func NewJSON() JSON {
	return JSON{}
}

// Name returns "json"
func (JSON) Name() string { return JSONName }

// Encode marshals value without a trailing newline.
func (JSON) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	// Encoder always terminates with '\n'; framing is the sink's job.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
