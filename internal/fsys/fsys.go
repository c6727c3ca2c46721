// Package fsys is the file-system access layer used by the catalog walker
// and the usage scheduler. Hosts that serve unsaved buffers or remote
// workspaces provide their own FileSystem; the default reads the local disk.
package fsys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem reads files and directories by OS path.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// ReadError reports a file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// OS is the FileSystem backed by the local disk.
type OS struct{}

func (OS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (OS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// FromFS adapts an fs.FS mounted at root. OS paths under root are translated
// to slash-separated fs paths; paths outside root fail with fs.ErrNotExist.
func FromFS(fsys fs.FS, root string) FileSystem {
	return &mounted{fsys: fsys, root: filepath.Clean(root)}
}

type mounted struct {
	fsys fs.FS
	root string
}

func (m *mounted) rel(name string) (string, error) {
	rel, err := filepath.Rel(m.root, filepath.Clean(name))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return path.Clean(filepath.ToSlash(rel)), nil
}

func (m *mounted) ReadFile(name string) ([]byte, error) {
	rel, err := m.rel(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(m.fsys, rel)
}

func (m *mounted) Stat(name string) (fs.FileInfo, error) {
	rel, err := m.rel(name)
	if err != nil {
		return nil, err
	}
	return fs.Stat(m.fsys, rel)
}

func (m *mounted) ReadDir(name string) ([]fs.DirEntry, error) {
	rel, err := m.rel(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadDir(m.fsys, rel)
}

// Read reads name, wrapping any failure in a *ReadError.
func Read(f FileSystem, name string) ([]byte, error) {
	data, err := f.ReadFile(name)
	if err != nil {
		return nil, &ReadError{Path: name, Err: err}
	}
	return data, nil
}

// Exists reports whether name exists. Stat errors other than not-exist are
// treated as absent.
func Exists(f FileSystem, name string) bool {
	_, err := f.Stat(name)
	return err == nil
}

// IsDir reports whether name exists and is a directory.
func IsDir(f FileSystem, name string) bool {
	info, err := f.Stat(name)
	return err == nil && info.IsDir()
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
