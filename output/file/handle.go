package file

import (
	"bufio"
	"os"

	"github.com/spf13/afero"
)

// DefaultBufferSize is the write buffer in front of the output file
const DefaultBufferSize = 64 * 1024

// Handle is a buffered, line-oriented writer over an afero file.
// It is owned by exactly one sink.
type Handle struct {
	path string
	file afero.File
	w    *bufio.Writer
}

// OpenHandle opens path for writing, creating it if absent and truncating it
// if present.
func OpenHandle(fs afero.Fs, path string) (*Handle, error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &Handle{
		path: path,
		file: f,
		w:    bufio.NewWriterSize(f, DefaultBufferSize),
	}, nil
}

// Path returns the path the handle was opened with
func (h *Handle) Path() string { return h.path }

// AppendLine writes packet followed by a single '\n' and returns the number of
// bytes accepted. Embedded newlines are written as-is.
func (h *Handle) AppendLine(packet []byte) (int, error) {
	n, err := h.w.Write(packet)
	if err != nil {
		h.discard()
		return n, err
	}
	if err := h.w.WriteByte('\n'); err != nil {
		h.discard()
		return n, err
	}
	return n + 1, nil
}

// Flush pushes buffered bytes to the file and syncs it to stable storage.
func (h *Handle) Flush() error {
	if err := h.w.Flush(); err != nil {
		h.discard()
		return err
	}
	return h.file.Sync()
}

// discard drops the failed event's buffered bytes and the error bufio.Writer
// would otherwise return for every later write.
func (h *Handle) discard() {
	h.w.Reset(h.file)
}

// Close closes the file without flushing.
func (h *Handle) Close() error {
	return h.file.Close()
}
