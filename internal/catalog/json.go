package catalog

import (
	"context"
	"encoding/json"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/script"
)

// parseJSON validates src with encoding/json, then recovers positions by
// parsing the document as a parenthesized JavaScript expression. Every JSON
// document is a valid JavaScript expression, so the tree-sitter grammar
// already shipped for scripts doubles as the JSON position parser.
func parseJSON(src []byte) (*Document, error) {
	var probe any
	if err := json.Unmarshal(src, &probe); err != nil {
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}

	wrapped := make([]byte, 0, len(src)+2)
	wrapped = append(wrapped, '(')
	wrapped = append(wrapped, src...)
	wrapped = append(wrapped, ')')

	tree, err := script.Parse(context.Background(), wrapped, script.JavaScript)
	if err != nil {
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}
	defer tree.Close()

	var value *sitter.Node
	script.Walk(tree.Root(), func(n *sitter.Node) bool {
		if value != nil {
			return false
		}
		if n.Type() == "parenthesized_expression" {
			if inner := script.NamedChildren(n); len(inner) > 0 {
				value = inner[0]
			}
			return false
		}
		return true
	})
	if value == nil {
		return nil, &ParseError{Format: FormatJSON, Err: errors.New("no value found")}
	}

	b := &literalBuilder{
		tree:    tree,
		lines:   position.NewLineIndex(src),
		base:    1,
		unquote: unquoteJSON,
	}
	root := b.build(value)
	return &Document{
		Format:  FormatJSON,
		Entries: flattenLiteral(nil, "", root),
		Tree:    &literalTree{format: FormatJSON, root: root},
	}, nil
}

func unquoteJSON(lit string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(lit), &s); err != nil {
		return "", err
	}
	return s, nil
}
