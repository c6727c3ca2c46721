// Package script parses JavaScript and TypeScript sources with tree-sitter and
// offers the node helpers shared by usage extraction, focus classification
// and the JavaScript catalog format.
package script

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
)

// Tree is a parsed script together with its source.
type Tree struct {
	tree  *sitter.Tree
	src   []byte
	lang  string
	lines *position.LineIndex
}

// Parse parses src as the given language ("javascript" or "typescript").
func Parse(ctx context.Context, src []byte, lang string) (*Tree, error) {
	g, ok := grammar(lang)
	if !ok {
		return nil, fmt.Errorf("script: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("script: tree-sitter parse failed: %w", err)
	}
	return &Tree{tree: tree, src: src, lang: lang, lines: position.NewLineIndex(src)}, nil
}

// Close releases the tree-sitter tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Root returns the root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the parsed source bytes.
func (t *Tree) Source() []byte {
	return t.src
}

// Language returns the canonical language name.
func (t *Tree) Language() string {
	return t.lang
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.src)
}

// Offset converts a zero-based editor position to a byte offset.
func (t *Tree) Offset(pos position.Position) (int, bool) {
	return t.lines.Offset(pos)
}

// NodeAt returns the deepest node whose byte span contains off.
func (t *Tree) NodeAt(off int) *sitter.Node {
	n := t.tree.RootNode()
	for {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			if int(c.StartByte()) <= off && off < int(c.EndByte()) {
				next = c
				break
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

// Range returns the zero-based editor range of n. Tree-sitter points are
// already zero-based with byte columns.
func Range(n *sitter.Node) position.Range {
	sp, ep := n.StartPoint(), n.EndPoint()
	return position.Range{
		Start: position.Position{Line: int(sp.Row), Character: int(sp.Column)},
		End:   position.Position{Line: int(ep.Row), Character: int(ep.Column)},
	}
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// NamedChildren returns the named children of n, skipping comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// StringValue returns the unescaped value of a string literal node.
func (t *Tree) StringValue(n *sitter.Node) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	v, err := UnquoteJS(t.Text(n))
	if err != nil {
		return "", false
	}
	return v, true
}

// UnquoteJS interprets a single- or double-quoted JavaScript string literal.
func UnquoteJS(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("script: literal too short: %q", lit)
	}
	q := lit[0]
	if (q != '"' && q != '\'' && q != '`') || lit[len(lit)-1] != q {
		return "", fmt.Errorf("script: not a quoted literal: %q", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case 'x':
			if i+3 <= len(body) {
				if v, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteRune(rune(v))
					i += 2
					continue
				}
			}
			b.WriteByte(e)
		case 'u':
			r, n := parseUnicodeEscape(body[i+1:])
			if n == 0 {
				b.WriteByte(e)
				continue
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

// parseUnicodeEscape parses the part after "\u": either XXXX or {X...}.
// It returns the rune and the number of bytes consumed.
func parseUnicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, 0
		}
		return rune(v), end + 1
	}
	if len(s) < 4 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), 4
}
