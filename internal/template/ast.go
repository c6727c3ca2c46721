// Package template parses Glimmer (Handlebars) templates into a
// position-annotated syntax tree of mustache constructs.
//
// HTML is not modeled: markup between mustaches is kept as Text, so
// mustaches inside attribute values and element modifiers appear as ordinary
// statements. Positions are one-based lines and byte columns.
package template

import (
	"strings"

	"github.com/jward/intlsense/internal/position"
)

// Node is a syntax tree node. The set of implementations is closed.
type Node interface {
	Span() position.Span
	node()
}

// Statement is a node that can appear in a Program body.
type Statement interface {
	Node
	statement()
}

// Expression is a node that can appear as a path, param or hash value.
type Expression interface {
	Node
	expression()
}

type loc struct {
	span position.Span
}

func (l loc) Span() position.Span { return l.span }

// Program is a sequence of statements: a whole template or a block body.
type Program struct {
	loc
	Body []Statement
}

// Text is markup between mustaches.
type Text struct {
	loc
	Value string
}

// Comment is a {{! }} or {{!-- --}} comment.
type Comment struct {
	loc
	Value string
}

// Mustache is a {{path params hash}} statement. Trusted is set for triple
// curlies.
type Mustache struct {
	loc
	Path    Expression
	Params  []Expression
	Hash    *Hash
	Trusted bool
}

// Block is a {{#path}}...{{/path}} statement. Inverse holds the {{else}}
// body; an {{else if}} chain nests a Block inside Inverse.
type Block struct {
	loc
	Path        Expression
	Params      []Expression
	Hash        *Hash
	BlockParams []string
	Program     *Program
	Inverse     *Program
}

// SubExpression is a parenthesized (path params hash) call.
type SubExpression struct {
	loc
	Path   Expression
	Params []Expression
	Hash   *Hash
}

// HeadKind classifies the head of a path expression.
type HeadKind int

const (
	// HeadPlain is a free variable or helper name such as `t` or `foo.bar`.
	HeadPlain HeadKind = iota
	// HeadThis is a this-relative path such as `this.foo`.
	HeadThis
	// HeadArg is an argument reference such as `@title`.
	HeadArg
)

// PathExpression is a dotted path. Original is the source text.
type PathExpression struct {
	loc
	Original string
	Head     HeadKind
	Parts    []string
}

// HeadName returns the first segment of a plain path, or "".
func (p *PathExpression) HeadName() string {
	if p.Head != HeadPlain || len(p.Parts) == 0 {
		return ""
	}
	return p.Parts[0]
}

type StringLiteral struct {
	loc
	Value string
}

type NumberLiteral struct {
	loc
	Value string
}

type BooleanLiteral struct {
	loc
	Value bool
}

type NullLiteral struct{ loc }

type UndefinedLiteral struct{ loc }

// Hash is the key=value arguments of a call.
type Hash struct {
	loc
	Pairs []*HashPair
}

type HashPair struct {
	loc
	Key   string
	Value Expression
}

func (*Program) node()          {}
func (*Text) node()             {}
func (*Comment) node()          {}
func (*Mustache) node()         {}
func (*Block) node()            {}
func (*SubExpression) node()    {}
func (*PathExpression) node()   {}
func (*StringLiteral) node()    {}
func (*NumberLiteral) node()    {}
func (*BooleanLiteral) node()   {}
func (*NullLiteral) node()      {}
func (*UndefinedLiteral) node() {}
func (*Hash) node()             {}
func (*HashPair) node()         {}

func (*Text) statement()     {}
func (*Comment) statement()  {}
func (*Mustache) statement() {}
func (*Block) statement()    {}

func (*SubExpression) expression()    {}
func (*PathExpression) expression()   {}
func (*StringLiteral) expression()    {}
func (*NumberLiteral) expression()    {}
func (*BooleanLiteral) expression()   {}
func (*NullLiteral) expression()      {}
func (*UndefinedLiteral) expression() {}

func newPath(original string, sp position.Span) *PathExpression {
	p := &PathExpression{loc: loc{sp}, Original: original}
	rest := original
	switch {
	case original == "this":
		p.Head, rest = HeadThis, ""
	case strings.HasPrefix(original, "this."):
		p.Head, rest = HeadThis, original[len("this."):]
	case strings.HasPrefix(original, "@"):
		p.Head, rest = HeadArg, original[1:]
	}
	if rest != "" {
		p.Parts = strings.Split(rest, ".")
	}
	return p
}

// children returns the direct children of n in source order.
func children(n Node) []Node {
	var out []Node
	call := func(path Expression, params []Expression, hash *Hash) {
		out = append(out, path)
		for _, e := range params {
			out = append(out, e)
		}
		if hash != nil {
			out = append(out, hash)
		}
	}
	switch v := n.(type) {
	case *Program:
		for _, s := range v.Body {
			out = append(out, s)
		}
	case *Mustache:
		call(v.Path, v.Params, v.Hash)
	case *Block:
		call(v.Path, v.Params, v.Hash)
		if v.Program != nil {
			out = append(out, v.Program)
		}
		if v.Inverse != nil {
			out = append(out, v.Inverse)
		}
	case *SubExpression:
		call(v.Path, v.Params, v.Hash)
	case *Hash:
		for _, p := range v.Pairs {
			out = append(out, p)
		}
	case *HashPair:
		out = append(out, v.Value)
	case *Text, *Comment, *PathExpression, *StringLiteral, *NumberLiteral,
		*BooleanLiteral, *NullLiteral, *UndefinedLiteral:
	}
	return out
}

// Walk visits n and its descendants in source order. fn receives each node
// with its ancestors, outermost first. Returning false skips the node's
// children.
func Walk(n Node, fn func(n Node, parents []Node) bool) {
	walk(n, nil, fn)
}

func walk(n Node, parents []Node, fn func(Node, []Node) bool) {
	if !fn(n, parents) {
		return
	}
	parents = append(parents, n)
	for _, c := range children(n) {
		walk(c, parents[:len(parents):len(parents)], fn)
	}
}

// NodeAt returns the chain of nodes containing pos, from root to the deepest
// node. It is nil when pos is outside root.
func NodeAt(root Node, pos position.Pos) []Node {
	if !root.Span().Contains(pos) {
		return nil
	}
	chain := []Node{root}
	for {
		var next Node
		for _, c := range children(chain[len(chain)-1]) {
			if c.Span().Contains(pos) {
				next = c
				break
			}
		}
		if next == nil {
			return chain
		}
		chain = append(chain, next)
	}
}
