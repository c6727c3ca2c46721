package catalog

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/script"
)

// literal is a node of an object-literal tree. JSON and JavaScript catalogs
// both reduce to this shape once parsed.
type literal interface {
	span() position.Span
}

type objectLit struct {
	sp    position.Span
	props []property
}

type property struct {
	key     string
	keySpan position.Span
	value   literal
}

type arrayLit struct {
	sp    position.Span
	items []literal
}

type scalarLit struct {
	sp   position.Span
	text string
}

// opaqueLit is any expression that is not a literal, such as an identifier or
// a call. It contributes no entries.
type opaqueLit struct {
	sp position.Span
}

func (o *objectLit) span() position.Span { return o.sp }
func (a *arrayLit) span() position.Span  { return a.sp }
func (s *scalarLit) span() position.Span { return s.sp }
func (o *opaqueLit) span() position.Span { return o.sp }

// literalBuilder converts tree-sitter expression nodes to literals. base is
// subtracted from every byte offset before it is mapped through lines, which
// lets JSON documents be parsed inside a wrapping expression.
type literalBuilder struct {
	tree    *script.Tree
	lines   *position.LineIndex
	base    int
	unquote func(string) (string, error)
}

func (b *literalBuilder) spanOf(n *sitter.Node) position.Span {
	return position.Span{
		Start: b.lines.Pos(int(n.StartByte()) - b.base),
		End:   b.lines.Pos(int(n.EndByte()) - b.base),
	}
}

func (b *literalBuilder) build(n *sitter.Node) literal {
	sp := b.spanOf(n)
	switch n.Type() {
	case "object":
		obj := &objectLit{sp: sp}
		for _, c := range script.NamedChildren(n) {
			if c.Type() != "pair" {
				continue
			}
			keyNode, valNode := c.ChildByFieldName("key"), c.ChildByFieldName("value")
			if keyNode == nil || valNode == nil {
				continue
			}
			key, ok := b.propertyKey(keyNode)
			if !ok {
				continue
			}
			obj.set(property{
				key:     key,
				keySpan: b.spanOf(keyNode),
				value:   b.build(valNode),
			})
		}
		return obj
	case "array":
		arr := &arrayLit{sp: sp}
		for _, c := range script.NamedChildren(n) {
			arr.items = append(arr.items, b.build(c))
		}
		return arr
	case "string":
		if v, err := b.unquote(b.tree.Text(n)); err == nil {
			return &scalarLit{sp: sp, text: v}
		}
	case "template_string":
		text := b.tree.Text(n)
		if !strings.Contains(text, "${") {
			if v, err := script.UnquoteJS(text); err == nil {
				return &scalarLit{sp: sp, text: v}
			}
		}
	case "number", "true", "false", "null":
		return &scalarLit{sp: sp, text: b.tree.Text(n)}
	case "unary_expression":
		if arg := n.ChildByFieldName("argument"); arg != nil && arg.Type() == "number" {
			return &scalarLit{sp: sp, text: b.tree.Text(n)}
		}
	case "parenthesized_expression":
		if inner := script.NamedChildren(n); len(inner) == 1 {
			return b.build(inner[0])
		}
	}
	return &opaqueLit{sp: sp}
}

func (b *literalBuilder) propertyKey(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "string":
		v, err := b.unquote(b.tree.Text(n))
		return v, err == nil
	case "property_identifier", "identifier", "number":
		return b.tree.Text(n), true
	}
	return "", false
}

// flattenLiteral appends the leaves below l in source order.
func flattenLiteral(out []Entry, prefix string, l literal) []Entry {
	switch v := l.(type) {
	case *objectLit:
		for _, p := range v.props {
			out = flattenLiteral(out, joinKey(prefix, p.key), p.value)
		}
	case *arrayLit:
		for i, item := range v.items {
			out = flattenLiteral(out, joinKey(prefix, strconv.Itoa(i)), item)
		}
	case *scalarLit:
		if prefix != "" {
			out = append(out, Entry{Key: prefix, Text: v.text})
		}
	}
	return out
}

// locateLiteral walks root along key.
func locateLiteral(root literal, key string) (position.Span, bool) {
	if root == nil || key == "" {
		return position.Span{}, false
	}
	segs := strings.Split(key, ".")
	cur := root
	for i, seg := range segs {
		last := i == len(segs)-1
		switch v := cur.(type) {
		case *objectLit:
			p, ok := v.find(seg)
			if !ok {
				return position.Span{}, false
			}
			if last {
				return position.Span{Start: p.keySpan.Start, End: p.value.span().End}, true
			}
			cur = p.value
		case *arrayLit:
			idx, ok := indexSegment(seg)
			if !ok || idx >= len(v.items) {
				return position.Span{}, false
			}
			if last {
				return v.items[idx].span(), true
			}
			cur = v.items[idx]
		default:
			return position.Span{}, false
		}
	}
	return position.Span{}, false
}

// set adds p, replacing an earlier property with the same key in place. The
// last value wins and the key keeps its first position, as with JSON.parse.
func (o *objectLit) set(p property) {
	for i := range o.props {
		if o.props[i].key == p.key {
			o.props[i] = p
			return
		}
	}
	o.props = append(o.props, p)
}

func (o *objectLit) find(key string) (property, bool) {
	for _, p := range o.props {
		if p.key == key {
			return p, true
		}
	}
	return property{}, false
}

// literalTree is the Tree for formats that reduce to object literals.
type literalTree struct {
	format Format
	root   literal
}

func (t *literalTree) Locate(key string) (position.Span, bool) { return locateLiteral(t.root, key) }
func (t *literalTree) Format() Format                           { return t.format }
func (t *literalTree) sealed()                                  {}
