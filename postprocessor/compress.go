package postprocessor

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Registry names of the compression postprocessors.
const (
	GzipName   = "gzip"
	ZlibName   = "zlib"
	ZstdName   = "zstd"
	SnappyName = "snappy"
	LZ4Name    = "lz4"
)

func init() {
	MustRegister(GzipName, func() (Postprocessor, error) { return Gzip{}, nil })
	MustRegister(ZlibName, func() (Postprocessor, error) { return Zlib{}, nil })
	MustRegister(ZstdName, func() (Postprocessor, error) { return NewZstd() })
	MustRegister(SnappyName, func() (Postprocessor, error) { return Snappy{}, nil })
	MustRegister(LZ4Name, func() (Postprocessor, error) { return LZ4{}, nil })
}

// compressWith streams data through a writer produced by open and returns the
// compressed bytes. Each call produces a complete, independently decodable stream.
func compressWith(data []byte, open func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer
	w := open(&buf)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Gzip compresses each packet into a standalone gzip member.
type Gzip struct{}

// Name returns "gzip"
func (Gzip) Name() string { return GzipName }

// Process compresses data
func (Gzip) Process(_ uint64, data []byte) ([][]byte, error) {
	out, err := compressWith(data, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) })
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

// Zlib compresses each packet into a zlib stream.
type Zlib struct{}

// Name returns "zlib"
func (Zlib) Name() string { return ZlibName }

// Process compresses data
func (Zlib) Process(_ uint64, data []byte) ([][]byte, error) {
	out, err := compressWith(data, func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) })
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

// Zstd compresses each packet into a zstd frame. The encoder is reused across
// packets, which is why the registry creates one instance per chain.
type Zstd struct {
	enc *zstd.Encoder
}

// NewZstd creates a zstd postprocessor with default encoder settings.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &Zstd{enc: enc}, nil
}

// Name returns "zstd"
func (*Zstd) Name() string { return ZstdName }

// Process compresses data
func (z *Zstd) Process(_ uint64, data []byte) ([][]byte, error) {
	return [][]byte{z.enc.EncodeAll(data, nil)}, nil
}

// Snappy compresses each packet with the snappy block format.
type Snappy struct{}

// Name returns "snappy"
func (Snappy) Name() string { return SnappyName }

// Process compresses data
func (Snappy) Process(_ uint64, data []byte) ([][]byte, error) {
	return [][]byte{snappy.Encode(nil, data)}, nil
}

// LZ4 compresses each packet into an lz4 frame.
type LZ4 struct{}

// Name returns "lz4"
func (LZ4) Name() string { return LZ4Name }

// Process compresses data
func (LZ4) Process(_ uint64, data []byte) ([][]byte, error) {
	out, err := compressWith(data, func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) })
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}
