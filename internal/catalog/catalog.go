// Package catalog parses translation catalogs into flattened key/text entries
// and position-annotated trees that can re-locate any flattened key in its
// source.
//
// Supported formats are JSON, YAML and JavaScript modules exporting an object
// literal. Keys are the dot-joined path of object keys from the root to a
// scalar leaf; array elements are keyed by their index.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jward/intlsense/internal/position"
)

// Format identifies a catalog file format.
type Format int

const (
	FormatJSON Format = iota + 1
	FormatYAML
	FormatScript
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatScript:
		return "js"
	}
	return "unknown"
}

// ErrUnsupportedFormat is returned for files whose extension names no
// catalog format.
var ErrUnsupportedFormat = errors.New("catalog: unsupported format")

// FormatForFile returns the catalog format for path based on its extension.
func FormatForFile(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".js", ".mjs":
		return FormatScript, true
	}
	return 0, false
}

// ParseError reports malformed catalog content.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("catalog: parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("catalog: parse %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Entry is one flattened catalog leaf.
type Entry struct {
	Key  string
	Text string
}

// Tree is the position-annotated syntax tree of one catalog document. The
// implementations are closed to this package: one per format.
type Tree interface {
	// Locate walks the tree along the dot-separated key and returns the
	// one-based span from the key token's start to the value's end. ok is
	// false when the key cannot be re-located structurally.
	Locate(key string) (span position.Span, ok bool)
	Format() Format

	sealed()
}

// Document is a parsed catalog.
type Document struct {
	Format  Format
	Entries []Entry
	Tree    Tree
}

// Values returns the flattened entries as a map. Later duplicates win.
func (d *Document) Values() map[string]string {
	out := make(map[string]string, len(d.Entries))
	for _, e := range d.Entries {
		out[e.Key] = e.Text
	}
	return out
}

// Span returns the located span of key, or the zero-length span at document
// start when the key cannot be re-located.
func (d *Document) Span(key string) position.Span {
	if d.Tree != nil {
		if s, ok := d.Tree.Locate(key); ok {
			return s
		}
	}
	return position.DocumentStart
}

// Parse parses a catalog file, choosing the format from its extension.
func Parse(path string, src []byte) (*Document, error) {
	f, ok := FormatForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	doc, err := ParseFormat(f, src)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// ParseFormat parses src in the given format.
func ParseFormat(f Format, src []byte) (*Document, error) {
	switch f {
	case FormatJSON:
		return parseJSON(src)
	case FormatYAML:
		return parseYAML(src)
	case FormatScript:
		return parseScript(src)
	}
	return nil, ErrUnsupportedFormat
}

// joinKey appends seg to a dot-joined key prefix.
func joinKey(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// indexSegment parses a key segment as an array index.
func indexSegment(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
