package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStorage is path-addressable file storage. Paths are slash separated and
// relative to the storage root. Put never replaces an existing file: it fails
// with an error matching fs.ErrExist before reading r.
type FileStorage interface {
	Put(path string, r io.Reader) error
	Delete(path string) error
	Exists(path string) bool
	AbsolutePath(path string) string
	PublicURL(path string) string
}

// LocalStorage stores files under Root and serves them below BaseURL.
type LocalStorage struct {
	Root    string
	BaseURL string
}

// NewLocalStorage returns a LocalStorage, creating root if needed.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &LocalStorage{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// clean confines p to the storage root.
func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
}

// AbsolutePath maps a relative path to the filesystem.
func (s *LocalStorage) AbsolutePath(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(clean(p)))
}

// Put writes r to a new file at p, creating parent directories.
func (s *LocalStorage) Put(p string, r io.Reader) error {
	abs := s.AbsolutePath(p)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(abs)
		return fmt.Errorf("writing file: %w", err)
	}
	return f.Close()
}

// Delete removes p. A missing file is not an error.
func (s *LocalStorage) Delete(p string) error {
	err := os.Remove(s.AbsolutePath(p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Exists reports whether p is a regular file.
func (s *LocalStorage) Exists(p string) bool {
	info, err := os.Stat(s.AbsolutePath(p))
	return err == nil && info.Mode().IsRegular()
}

// PublicURL returns the URL p is served at.
func (s *LocalStorage) PublicURL(p string) string {
	return s.BaseURL + "/" + clean(p)
}
