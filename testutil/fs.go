package testutil

import (
	"os"
	"sync"

	"github.com/spf13/afero"
)

// FailingFs wraps an afero.Fs and injects errors into the files it opens.
// Errors can be switched on and off while files are open.
type FailingFs struct {
	afero.Fs

	mu       sync.Mutex
	openErr  error
	writeErr error
	syncErr  error
	closeErr error
}

// NewFailingFs wraps base. With no errors set it behaves exactly like base.
func NewFailingFs(base afero.Fs) *FailingFs {
	return &FailingFs{Fs: base}
}

// SetOpenErr makes OpenFile and Create fail with err
func (fs *FailingFs) SetOpenErr(err error) { fs.set(&fs.openErr, err) }

// SetWriteErr makes Write on opened files fail with err
func (fs *FailingFs) SetWriteErr(err error) { fs.set(&fs.writeErr, err) }

// SetSyncErr makes Sync on opened files fail with err
func (fs *FailingFs) SetSyncErr(err error) { fs.set(&fs.syncErr, err) }

// SetCloseErr makes Close on opened files fail with err
func (fs *FailingFs) SetCloseErr(err error) { fs.set(&fs.closeErr, err) }

func (fs *FailingFs) set(field *error, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	*field = err
}

func (fs *FailingFs) get(field *error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return *field
}

// Name identifies the filesystem
func (fs *FailingFs) Name() string { return "FailingFs" }

// Create opens name for writing through the fault-injecting wrapper
func (fs *FailingFs) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// OpenFile opens name on the wrapped filesystem
func (fs *FailingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err := fs.get(&fs.openErr); err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &failingFile{File: f, fs: fs}, nil
}

type failingFile struct {
	afero.File
	fs *FailingFs
}

func (f *failingFile) Write(p []byte) (int, error) {
	if err := f.fs.get(&f.fs.writeErr); err != nil {
		return 0, err
	}
	return f.File.Write(p)
}

func (f *failingFile) Sync() error {
	if err := f.fs.get(&f.fs.syncErr); err != nil {
		return err
	}
	return f.File.Sync()
}

func (f *failingFile) Close() error {
	closeErr := f.File.Close()
	if err := f.fs.get(&f.fs.closeErr); err != nil {
		return err
	}
	return closeErr
}
