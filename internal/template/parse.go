package template

import (
	"fmt"
	"strings"

	"github.com/jward/intlsense/internal/position"
)

// ParseError reports a malformed template.
type ParseError struct {
	Pos position.Pos
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template: %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

type termKind int

const (
	termEOF termKind = iota
	termClose
	termElse
)

// terminator is the tag that ended a program body.
type terminator struct {
	kind  termKind
	name  string // closing block name
	chain *Block // {{else if ...}} opener
	start int
	end   int
}

type parser struct {
	src   string
	off   int
	lines *position.LineIndex
}

// Parse parses a template.
func Parse(src []byte) (*Program, error) {
	p := &parser{src: string(src), lines: position.NewLineIndex(src)}
	prog, term, err := p.parseProgram(false)
	if err != nil {
		return nil, err
	}
	prog.span = p.span(0, term.end)
	return prog, nil
}

func (p *parser) span(start, end int) position.Span {
	return position.Span{Start: p.lines.Pos(start), End: p.lines.Pos(end)}
}

func (p *parser) errorf(off int, format string, args ...any) error {
	return &ParseError{Pos: p.lines.Pos(off), Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.off >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.off]
}

func (p *parser) rest() string { return p.src[p.off:] }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.off]) {
		p.off++
	}
}

// nextOpen returns the offset of the next "{{" at or after from, skipping
// escaped mustaches and HTML comments. It returns len(src) when there is
// none.
func (p *parser) nextOpen(from int) int {
	k := from
	for k < len(p.src) {
		j := strings.Index(p.src[k:], "{{")
		if j < 0 {
			return len(p.src)
		}
		if c := strings.Index(p.src[k:], "<!--"); c >= 0 && c < j {
			end := strings.Index(p.src[k+c:], "-->")
			if end < 0 {
				return len(p.src)
			}
			k += c + end + len("-->")
			continue
		}
		if j > 0 && p.src[k+j-1] == '\\' {
			k += j + 2
			continue
		}
		return k + j
	}
	return len(p.src)
}

// parseProgram parses statements until EOF or, inside a block, until an
// {{else}} or closing tag.
func (p *parser) parseProgram(inBlock bool) (*Program, terminator, error) {
	prog := &Program{}
	start := p.off
	for {
		i := p.nextOpen(p.off)
		if i > p.off {
			prog.Body = append(prog.Body, &Text{loc: loc{p.span(p.off, i)}, Value: p.src[p.off:i]})
			p.off = i
		}
		if p.eof() {
			prog.span = p.span(start, p.off)
			return prog, terminator{kind: termEOF, start: p.off, end: p.off}, nil
		}

		stmt, term, err := p.parseTag(inBlock)
		if err != nil {
			return nil, terminator{}, err
		}
		if term != nil {
			prog.span = p.span(start, term.start)
			return prog, *term, nil
		}
		prog.Body = append(prog.Body, stmt)
	}
}

// parseTag parses one tag starting at "{{". It returns either a statement or
// the terminator that ends the enclosing block body.
func (p *parser) parseTag(inBlock bool) (Statement, *terminator, error) {
	tagStart := p.off
	rest := p.rest()

	switch {
	case strings.HasPrefix(rest, "{{{{"):
		return nil, nil, p.errorf(tagStart, "raw blocks are not supported")
	case strings.HasPrefix(rest, "{{!--"), strings.HasPrefix(rest, "{{~!--"):
		return p.parseComment(tagStart, "--}}")
	case strings.HasPrefix(rest, "{{!"), strings.HasPrefix(rest, "{{~!"):
		return p.parseComment(tagStart, "}}")
	}

	p.off += 2
	trusted := false
	if p.peek() == '{' {
		trusted = true
		p.off++
	}
	if p.peek() == '~' {
		p.off++
	}
	p.skipSpace()

	switch c := p.peek(); {
	case c == '#' && !trusted:
		p.off++
		if n := p.peek(); n == '>' || n == '*' {
			return nil, nil, p.errorf(tagStart, "partial blocks and decorators are not supported")
		}
		call, err := p.parseCall(tagStart, false)
		if err != nil {
			return nil, nil, err
		}
		b := call.block()
		if err := p.parseBlockRest(b, pathName(b.Path)); err != nil {
			return nil, nil, err
		}
		return b, nil, nil

	case c == '/' && !trusted:
		if !inBlock {
			return nil, nil, p.errorf(tagStart, "unexpected closing tag")
		}
		p.off++
		p.skipSpace()
		name := p.readPathToken()
		p.skipSpace()
		if !p.consumeClose(false) {
			return nil, nil, p.errorf(p.off, "expected }} after closing tag")
		}
		return nil, &terminator{kind: termClose, name: name, start: tagStart, end: p.off}, nil

	case c == '^' && !trusted:
		p.off++
		p.skipSpace()
		if !p.consumeClose(false) {
			return nil, nil, p.errorf(tagStart, "inverse sections are not supported")
		}
		if !inBlock {
			return nil, nil, p.errorf(tagStart, "unexpected {{^}}")
		}
		return nil, &terminator{kind: termElse, start: tagStart, end: p.off}, nil

	case c == '>':
		return nil, nil, p.errorf(tagStart, "partials are not supported")

	case c == '&':
		p.off++
		call, err := p.parseCall(tagStart, false)
		if err != nil {
			return nil, nil, err
		}
		m := call.mustache()
		m.Trusted = true
		return m, nil, nil

	case p.keyword("else") && !trusted:
		if !inBlock {
			return nil, nil, p.errorf(tagStart, "unexpected {{else}}")
		}
		p.off += len("else")
		p.skipSpace()
		if p.consumeClose(false) {
			return nil, &terminator{kind: termElse, start: tagStart, end: p.off}, nil
		}
		call, err := p.parseCall(tagStart, false)
		if err != nil {
			return nil, nil, err
		}
		return nil, &terminator{kind: termElse, chain: call.block(), start: tagStart, end: p.off}, nil
	}

	call, err := p.parseCall(tagStart, trusted)
	if err != nil {
		return nil, nil, err
	}
	m := call.mustache()
	m.Trusted = trusted
	return m, nil, nil
}

func (p *parser) parseComment(start int, closer string) (Statement, *terminator, error) {
	end := strings.Index(p.src[start:], closer)
	if end < 0 {
		return nil, nil, p.errorf(start, "unterminated comment")
	}
	end += start + len(closer)
	body := p.src[start:end]
	body = strings.TrimPrefix(body, "{{")
	body = strings.TrimPrefix(body, "~")
	body = strings.TrimPrefix(body, "!")
	body = strings.TrimSuffix(body, "}}")
	body = strings.TrimSuffix(body, "~")
	if closer == "--}}" {
		body = strings.TrimPrefix(body, "--")
		body = strings.TrimSuffix(body, "--")
	}
	p.off = end
	return &Comment{loc: loc{p.span(start, end)}, Value: body}, nil, nil
}

// parseBlockRest parses a block body after its opening tag, through the
// closing tag named closeName. {{else if}} chains nest a block in Inverse
// that shares the outer closing tag.
func (p *parser) parseBlockRest(b *Block, closeName string) error {
	start := b.span.Start

	prog, term, err := p.parseProgram(true)
	if err != nil {
		return err
	}
	b.Program = prog

	switch term.kind {
	case termEOF:
		return p.errorf(p.off, "unclosed block %q", closeName)
	case termClose:
		if term.name != closeName {
			return p.errorf(term.start, "%q does not match %q", term.name, closeName)
		}
	case termElse:
		if term.chain != nil {
			if err := p.parseBlockRest(term.chain, closeName); err != nil {
				return err
			}
			b.Inverse = &Program{
				loc:  loc{term.chain.span},
				Body: []Statement{term.chain},
			}
			b.span = position.Span{Start: start, End: term.chain.span.End}
			return nil
		}
		inv, t2, err := p.parseProgram(true)
		if err != nil {
			return err
		}
		if t2.kind != termClose {
			return p.errorf(t2.start, "expected closing tag for %q", closeName)
		}
		if t2.name != closeName {
			return p.errorf(t2.start, "%q does not match %q", t2.name, closeName)
		}
		b.Inverse = inv
		term = t2
	}
	b.span = position.Span{Start: start, End: p.lines.Pos(term.end)}
	return nil
}

// call is the parsed content of a mustache, block opener or else-chain tag.
type call struct {
	path        Expression
	params      []Expression
	hash        *Hash
	blockParams []string
	sp          position.Span
}

func (c *call) mustache() *Mustache {
	return &Mustache{loc: loc{c.sp}, Path: c.path, Params: c.params, Hash: c.hash}
}

func (c *call) block() *Block {
	return &Block{loc: loc{c.sp}, Path: c.path, Params: c.params, Hash: c.hash, BlockParams: c.blockParams}
}

func pathName(e Expression) string {
	if p, ok := e.(*PathExpression); ok {
		return p.Original
	}
	return ""
}

// parseCall parses `path params... key=value... [as |x|]` and the closing
// curlies.
func (p *parser) parseCall(tagStart int, trusted bool) (*call, error) {
	p.skipSpace()
	path, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	c := &call{path: path}
	for {
		p.skipSpace()
		if p.consumeClose(trusted) {
			break
		}
		if p.eof() {
			return nil, p.errorf(tagStart, "unclosed mustache")
		}
		if names, ok, err := p.parseBlockParams(); err != nil {
			return nil, err
		} else if ok {
			c.blockParams = names
			continue
		}
		if pair, ok, err := p.parseHashPair(); err != nil {
			return nil, err
		} else if ok {
			c.hash = appendPair(c.hash, pair)
			continue
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.params = append(c.params, e)
	}
	c.sp = p.span(tagStart, p.off)
	return c, nil
}

func appendPair(h *Hash, pair *HashPair) *Hash {
	if h == nil {
		h = &Hash{loc: loc{pair.span}}
	}
	h.Pairs = append(h.Pairs, pair)
	h.span.End = pair.span.End
	return h
}

// consumeClose consumes "}}" (or "}}}" when trusted), with an optional
// leading "~".
func (p *parser) consumeClose(trusted bool) bool {
	closer := "}}"
	if trusted {
		closer = "}}}"
	}
	rest := p.rest()
	switch {
	case strings.HasPrefix(rest, closer):
		p.off += len(closer)
		return true
	case strings.HasPrefix(rest, "~"+closer):
		p.off += 1 + len(closer)
		return true
	}
	return false
}

func (p *parser) keyword(kw string) bool {
	rest := p.rest()
	if !strings.HasPrefix(rest, kw) {
		return false
	}
	if len(rest) == len(kw) {
		return true
	}
	n := rest[len(kw)]
	return isSpace(n) || n == '~' || n == '}'
}

func (p *parser) parseBlockParams() ([]string, bool, error) {
	save := p.off
	if !p.keyword("as") {
		return nil, false, nil
	}
	p.off += len("as")
	p.skipSpace()
	if p.peek() != '|' {
		p.off = save
		return nil, false, nil
	}
	p.off++
	var names []string
	for {
		p.skipSpace()
		if p.peek() == '|' {
			p.off++
			return names, true, nil
		}
		name := p.readPathToken()
		if name == "" {
			return nil, false, p.errorf(p.off, "malformed block params")
		}
		names = append(names, name)
	}
}

func (p *parser) parseHashPair() (*HashPair, bool, error) {
	start := p.off
	k := p.off
	for k < len(p.src) && isIDChar(p.src[k]) && p.src[k] != '.' {
		k++
	}
	if k == start || k >= len(p.src) || p.src[k] != '=' {
		return nil, false, nil
	}
	key := p.src[start:k]
	p.off = k + 1
	p.skipSpace()
	v, err := p.parseExpr()
	if err != nil {
		return nil, false, err
	}
	return &HashPair{loc: loc{position.Span{Start: p.lines.Pos(start), End: v.Span().End}}, Key: key, Value: v}, true, nil
}

func (p *parser) parseExpr() (Expression, error) {
	p.skipSpace()
	start := p.off
	c := p.peek()
	switch {
	case p.eof():
		return nil, p.errorf(start, "unexpected end of template")
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '(':
		return p.parseSubExpression()
	case isDigit(c) || (c == '-' && p.off+1 < len(p.src) && isDigit(p.src[p.off+1])):
		k := p.off + 1
		for k < len(p.src) && (isDigit(p.src[k]) || p.src[k] == '.') {
			k++
		}
		p.off = k
		return &NumberLiteral{loc: loc{p.span(start, k)}, Value: p.src[start:k]}, nil
	}

	tok := p.readPathToken()
	if tok == "" {
		return nil, p.errorf(start, "unexpected %q", c)
	}
	sp := p.span(start, p.off)
	switch tok {
	case "true", "false":
		return &BooleanLiteral{loc: loc{sp}, Value: tok == "true"}, nil
	case "null":
		return &NullLiteral{loc{sp}}, nil
	case "undefined":
		return &UndefinedLiteral{loc{sp}}, nil
	}
	return newPath(tok, sp), nil
}

func (p *parser) parseString() (Expression, error) {
	start := p.off
	q := p.src[p.off]
	p.off++
	var b strings.Builder
	for {
		if p.eof() {
			return nil, p.errorf(start, "unterminated string")
		}
		c := p.src[p.off]
		if c == '\\' && p.off+1 < len(p.src) && p.src[p.off+1] == q {
			b.WriteByte(q)
			p.off += 2
			continue
		}
		p.off++
		if c == q {
			break
		}
		b.WriteByte(c)
	}
	return &StringLiteral{loc: loc{p.span(start, p.off)}, Value: b.String()}, nil
}

func (p *parser) parseSubExpression() (Expression, error) {
	start := p.off
	p.off++
	path, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	sub := &SubExpression{Path: path}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.off++
			break
		}
		if p.eof() || strings.HasPrefix(p.rest(), "}}") {
			return nil, p.errorf(start, "unclosed sub-expression")
		}
		if pair, ok, err := p.parseHashPair(); err != nil {
			return nil, err
		} else if ok {
			sub.Hash = appendPair(sub.Hash, pair)
			continue
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sub.Params = append(sub.Params, e)
	}
	sub.span = p.span(start, p.off)
	return sub, nil
}

// readPathToken reads a path or identifier token.
func (p *parser) readPathToken() string {
	start := p.off
	for !p.eof() && isIDChar(p.src[p.off]) {
		p.off++
	}
	return p.src[start:p.off]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIDChar(c byte) bool {
	if isSpace(c) {
		return false
	}
	switch c {
	case '(', ')', '{', '}', '|', '=', '~', '"', '\'', 0:
		return false
	}
	return true
}
