// Package focus finds the translation key literal under an editor cursor.
package focus

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/script"
	"github.com/jward/intlsense/internal/template"
	"github.com/jward/intlsense/internal/usage"
)

// Focus is a translation key literal at the cursor.
type Focus struct {
	Kind  usage.Kind
	Value string
	// Range covers the literal including its quotes.
	Range position.Range
	// PropertyColumn is the zero-based column of the `t` property in a
	// script call, or -1 in templates.
	PropertyColumn int
}

// ParseError reports a document that could not be parsed.
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("focus: parse %s: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Locate parses content as the kind implied by uri and classifies the node
// at pos. It returns nil when the node is not a key literal or the file kind
// is not supported.
func Locate(ctx context.Context, uri string, content []byte, pos position.Position) (*Focus, error) {
	kind, ok := usage.KindForPath(uri)
	if !ok {
		return nil, nil
	}
	switch kind {
	case usage.KindTemplate:
		return locateTemplate(uri, content, pos)
	case usage.KindScript:
		return locateScript(ctx, uri, content, pos)
	}
	return nil, nil
}

func locateTemplate(uri string, content []byte, pos position.Position) (*Focus, error) {
	prog, err := template.Parse(content)
	if err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}
	chain := template.NodeAt(prog, position.Pos{Line: pos.Line + 1, Column: pos.Character + 1})
	return ClassifyTemplate(chain), nil
}

// ClassifyTemplate classifies the deepest node of a NodeAt chain. The node
// qualifies when it is a string param of a mustache or sub-expression whose
// path is the helper name.
func ClassifyTemplate(chain []template.Node) *Focus {
	if len(chain) < 2 {
		return nil
	}
	lit, ok := chain[len(chain)-1].(*template.StringLiteral)
	if !ok {
		return nil
	}
	var path template.Expression
	var params []template.Expression
	switch p := chain[len(chain)-2].(type) {
	case *template.Mustache:
		path, params = p.Path, p.Params
	case *template.SubExpression:
		path, params = p.Path, p.Params
	default:
		return nil
	}
	if !usage.IsHelperPath(path) {
		return nil
	}
	for _, e := range params {
		if e == template.Expression(lit) {
			return &Focus{
				Kind:           usage.KindTemplate,
				Value:          lit.Value,
				Range:          lit.Span().Range(),
				PropertyColumn: -1,
			}
		}
	}
	return nil
}

func locateScript(ctx context.Context, uri string, content []byte, pos position.Position) (*Focus, error) {
	lang, ok := script.LanguageForFile(uri)
	if !ok {
		return nil, nil
	}
	tree, err := script.Parse(ctx, content, lang)
	if err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}
	defer tree.Close()

	off, ok := tree.Offset(pos)
	if !ok {
		return nil, nil
	}
	if f := ClassifyScript(tree, tree.NodeAt(off)); f != nil {
		return f, nil
	}
	// A cursor right after the closing quote still targets the literal.
	if off > 0 {
		return ClassifyScript(tree, tree.NodeAt(off-1)), nil
	}
	return nil, nil
}

// ClassifyScript classifies n, or the string literal enclosing it. The
// literal qualifies when it is the first argument of a `<object>.t(...)`
// call.
func ClassifyScript(tree *script.Tree, n *sitter.Node) *Focus {
	for n != nil && n.Type() != "string" {
		switch n.Type() {
		case "string_fragment", "escape_sequence", "'", "\"":
			n = n.Parent()
		default:
			return nil
		}
	}
	if n == nil {
		return nil
	}
	args := n.Parent()
	if args == nil || args.Type() != "arguments" {
		return nil
	}
	arg, property, ok := usage.ScriptKey(tree, args.Parent())
	if !ok || arg.StartByte() != n.StartByte() || arg.EndByte() != n.EndByte() {
		return nil
	}
	value, _ := tree.StringValue(arg)
	return &Focus{
		Kind:           usage.KindScript,
		Value:          value,
		Range:          script.Range(arg),
		PropertyColumn: int(property.StartPoint().Column),
	}
}
