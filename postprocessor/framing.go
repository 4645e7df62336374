package postprocessor

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
)

// Registry names of the framing postprocessors.
const (
	SplitLinesName     = "split-lines"
	Base64Name         = "base64"
	IngestNSName       = "ingest-ns"
	LengthPrefixedName = "length-prefixed"
)

func init() {
	MustRegister(SplitLinesName, func() (Postprocessor, error) { return SplitLines{}, nil })
	MustRegister(Base64Name, func() (Postprocessor, error) { return Base64{}, nil })
	MustRegister(IngestNSName, func() (Postprocessor, error) { return IngestNS{}, nil })
	MustRegister(LengthPrefixedName, func() (Postprocessor, error) { return LengthPrefixed{}, nil })
}

// SplitLines emits one packet per non-empty line of its input.
type SplitLines struct{}

// Name returns "split-lines"
func (SplitLines) Name() string { return SplitLinesName }

// Process splits data on '\n'
func (SplitLines) Process(_ uint64, data []byte) ([][]byte, error) {
	var out [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out, nil
}

// Base64 encodes each packet with the standard alphabet. Placed after a
// compressor it keeps binary output free of raw newlines.
type Base64 struct{}

// Name returns "base64"
func (Base64) Name() string { return Base64Name }

// Process encodes data
func (Base64) Process(_ uint64, data []byte) ([][]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return [][]byte{out}, nil
}

// IngestNS prefixes each packet with the event's ingest timestamp as an
// 8-byte big-endian integer.
type IngestNS struct{}

// Name returns "ingest-ns"
func (IngestNS) Name() string { return IngestNSName }

// Process prefixes data
func (IngestNS) Process(ingestNS uint64, data []byte) ([][]byte, error) {
	out := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(out, ingestNS)
	return [][]byte{append(out, data...)}, nil
}

// LengthPrefixed prefixes each packet with its length as an 8-byte
// big-endian integer.
type LengthPrefixed struct{}

// Name returns "length-prefixed"
func (LengthPrefixed) Name() string { return LengthPrefixedName }

// Process prefixes data
func (LengthPrefixed) Process(_ uint64, data []byte) ([][]byte, error) {
	out := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(out, uint64(len(data)))
	return [][]byte{append(out, data...)}, nil
}
