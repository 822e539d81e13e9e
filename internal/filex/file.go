// Package filex wraps the files a user selects for verification and upload.
package filex

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Blob is an immutable, randomly readable selection: a bundle or its
// checksum file. Reads past Size return io.EOF.
type Blob interface {
	io.ReaderAt
	Name() string
	Size() int64
}

// File is a Blob backed by a file on disk. Its size is captured when the
// file is opened.
type File struct {
	f    *os.File
	path string
	size int64
}

// Open opens path for reading and snapshots its size. Directories are
// rejected.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &File{f: f, path: path, size: fi.Size()}, nil
}

func (f *File) Name() string { return filepath.Base(f.path) }

func (f *File) Size() int64 { return f.size }

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) Close() error {
	return f.f.Close()
}

// MemBlob is an in-memory Blob.
type MemBlob struct {
	name string
	r    *bytes.Reader
}

func NewMemBlob(name string, data []byte) *MemBlob {
	return &MemBlob{name: name, r: bytes.NewReader(data)}
}

func (m *MemBlob) Name() string { return m.name }

func (m *MemBlob) Size() int64 { return m.r.Size() }

func (m *MemBlob) ReadAt(p []byte, off int64) (int, error) {
	return m.r.ReadAt(p, off)
}

// ReadAll returns the whole content of b.
func ReadAll(b Blob) ([]byte, error) {
	return io.ReadAll(io.NewSectionReader(b, 0, b.Size()))
}

// EnsureSubdDir creates dirName under the current working directory if it
// does not exist yet and returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
