package catalog

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/script"
)

// parseScript reads a JavaScript module whose translations are the first
// object literal in the file, as in `export default { ... }` or
// `module.exports = { ... }`. Nothing is evaluated.
func parseScript(src []byte) (*Document, error) {
	tree, err := script.Parse(context.Background(), src, script.JavaScript)
	if err != nil {
		return nil, &ParseError{Format: FormatScript, Err: err}
	}
	defer tree.Close()

	if tree.Root().HasError() {
		return nil, &ParseError{Format: FormatScript, Err: errors.New("syntax error")}
	}

	var obj *sitter.Node
	script.Walk(tree.Root(), func(n *sitter.Node) bool {
		if obj != nil {
			return false
		}
		if n.Type() == "object" {
			obj = n
			return false
		}
		return true
	})
	if obj == nil {
		return nil, &ParseError{Format: FormatScript, Err: errors.New("no object literal found")}
	}

	b := &literalBuilder{
		tree:    tree,
		lines:   position.NewLineIndex(src),
		unquote: script.UnquoteJS,
	}
	root := b.build(obj)
	return &Document{
		Format:  FormatScript,
		Entries: flattenLiteral(nil, "", root),
		Tree:    &literalTree{format: FormatScript, root: root},
	}, nil
}
