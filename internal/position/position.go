// Package position defines the coordinate types shared by the catalog
// parsers, the template parser and the query layer.
//
// Two coordinate systems exist. Parsers and mappers work in one-based
// [Pos]/[Span] values. Everything stored in the index or returned to an
// editor is a zero-based [Range]. [Span.Range] is the only conversion between
// the two. Columns always count bytes.
package position

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Pos is a one-based line and column.
type Pos struct {
	Line   int
	Column int
}

// Span is a one-based source span.
type Span struct {
	Start Pos
	End   Pos
}

// Before reports whether p sorts strictly before o.
func (p Pos) Before(o Pos) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Contains reports whether p lies within s, both ends inclusive.
func (s Span) Contains(p Pos) bool {
	return !p.Before(s.Start) && !s.End.Before(p)
}

// DocumentStart is the zero-length span substituted when a key cannot be
// re-located in its catalog.
var DocumentStart = Span{Start: Pos{Line: 1, Column: 1}, End: Pos{Line: 1, Column: 1}}

// Range converts the one-based span to a zero-based editor range.
func (s Span) Range() Range {
	return Range{
		Start: Position{Line: s.Start.Line - 1, Character: s.Start.Column - 1},
		End:   Position{Line: s.End.Line - 1, Character: s.End.Column - 1},
	}
}

// Position is a zero-based line and byte column.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a zero-based editor range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos lies within r, both ends inclusive.
func (r Range) Contains(pos Position) bool {
	return !pos.Before(r.Start) && !r.End.Before(pos)
}

// Location is a range inside a file identified by URI.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// FileURI returns the file:// URI for path. Relative paths are made absolute.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// PathFromURI returns the file-system path for a file:// URI. Plain paths are
// returned unchanged.
func PathFromURI(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("position: parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("position: unsupported uri scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// LineIndex maps byte offsets in a document to line/column coordinates.
type LineIndex struct {
	starts []int // byte offset of the first byte of each line
	size   int
}

// NewLineIndex indexes the line starts of src.
func NewLineIndex(src []byte) *LineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, size: len(src)}
}

// Pos returns the one-based position of a byte offset. Offsets past the end
// are clamped.
func (li *LineIndex) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > li.size {
		offset = li.size
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return Pos{Line: line + 1, Column: offset - li.starts[line] + 1}
}

// Offset returns the byte offset of a zero-based position. ok is false when
// the position is outside the document.
func (li *LineIndex) Offset(p Position) (int, bool) {
	if p.Line < 0 || p.Line >= len(li.starts) || p.Character < 0 {
		return 0, false
	}
	end := li.size
	if p.Line+1 < len(li.starts) {
		end = li.starts[p.Line+1]
	}
	off := li.starts[p.Line] + p.Character
	if off > end {
		return 0, false
	}
	return off, true
}

// LineCount returns the number of lines in the document.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}
