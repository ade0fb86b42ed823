// Package storage keeps uploaded PDFs on the local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const pdfExt = ".pdf"

// StoredFile describes a file written by Save.
type StoredFile struct {
	Filename string
	Path     string
	Size     int64
}

// Local stores files flat under a single directory.
type Local struct {
	dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute storage directory.
func (l *Local) Dir() string {
	return l.dir
}

// Save streams r into a new file with a generated name.
func (l *Local) Save(r io.Reader) (*StoredFile, error) {
	filename := uuid.NewString() + pdfExt
	fullPath := filepath.Join(l.dir, filename)

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &StoredFile{Filename: filename, Path: fullPath, Size: size}, nil
}

// Open opens a stored file for reading. The path must live inside the storage directory.
func (l *Local) Open(path string) (io.ReadCloser, error) {
	if !l.contains(path) {
		return nil, fmt.Errorf("path %q outside upload dir", path)
	}
	return os.Open(path)
}

// Remove deletes a stored file. A missing file is not an error.
func (l *Local) Remove(path string) error {
	if !l.contains(path) {
		return fmt.Errorf("path %q outside upload dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the names of all stored PDFs, sorted.
func (l *Local) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), pdfExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// PathOf returns the full path for a stored filename.
func (l *Local) PathOf(filename string) string {
	return filepath.Join(l.dir, filepath.Base(filename))
}

func (l *Local) contains(path string) bool {
	rel, err := filepath.Rel(l.dir, filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
