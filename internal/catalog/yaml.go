package catalog

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jward/intlsense/internal/position"
)

const mergeTag = "!!merge"

func parseYAML(src []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &ParseError{Format: FormatYAML, Err: err}
	}

	t := &yamlTree{
		text:  string(src),
		lines: strings.Split(string(src), "\n"),
		index: position.NewLineIndex(src),
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		t.root = doc.Content[0]
	}
	return &Document{
		Format:  FormatYAML,
		Entries: flattenYAML(nil, "", t.root),
		Tree:    t,
	}, nil
}

// flattenYAML appends the leaves below n in source order. Aliases are
// resolved and merge keys are expanded, with explicit keys taking precedence
// over merged ones.
func flattenYAML(out []Entry, prefix string, n *yaml.Node) []Entry {
	if n == nil {
		return out
	}
	switch n.Kind {
	case yaml.AliasNode:
		return flattenYAML(out, prefix, n.Alias)
	case yaml.ScalarNode:
		if prefix != "" {
			out = append(out, Entry{Key: prefix, Text: n.Value})
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			out = flattenYAML(out, joinKey(prefix, strconv.Itoa(i)), item)
		}
	case yaml.MappingNode:
		seen := make(map[string]bool)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; !isMergeKey(k) {
				seen[k.Value] = true
			}
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if isMergeKey(k) {
				for _, src := range mergeSources(v) {
					for j := 0; j+1 < len(src.Content); j += 2 {
						mk := src.Content[j]
						if seen[mk.Value] {
							continue
						}
						seen[mk.Value] = true
						out = flattenYAML(out, joinKey(prefix, mk.Value), src.Content[j+1])
					}
				}
				continue
			}
			out = flattenYAML(out, joinKey(prefix, k.Value), v)
		}
	}
	return out
}

func isMergeKey(k *yaml.Node) bool {
	if k.Kind != yaml.ScalarNode || k.Value != "<<" {
		return false
	}
	return k.Tag == "" || k.Tag == "!" || k.Tag == mergeTag
}

// mergeSources returns the mappings referenced by a merge value, which is an
// alias or a sequence of aliases.
func mergeSources(v *yaml.Node) []*yaml.Node {
	var out []*yaml.Node
	add := func(n *yaml.Node) {
		for n != nil && n.Kind == yaml.AliasNode {
			n = n.Alias
		}
		if n != nil && n.Kind == yaml.MappingNode {
			out = append(out, n)
		}
	}
	if v.Kind == yaml.SequenceNode {
		for _, item := range v.Content {
			add(item)
		}
	} else {
		add(v)
	}
	return out
}

// yamlTree locates keys in the yaml.v3 node tree. Keys reached only through
// an alias or a merge key are not located.
type yamlTree struct {
	root  *yaml.Node
	text  string
	lines []string
	index *position.LineIndex
}

func (t *yamlTree) Format() Format { return FormatYAML }
func (t *yamlTree) sealed()        {}

func (t *yamlTree) Locate(key string) (position.Span, bool) {
	if t.root == nil || key == "" {
		return position.Span{}, false
	}
	segs := strings.Split(key, ".")
	cur := t.root
	flow := false
	for i, seg := range segs {
		last := i == len(segs)-1
		flow = flow || cur.Style&yaml.FlowStyle != 0
		switch cur.Kind {
		case yaml.MappingNode:
			var k, v *yaml.Node
			for j := 0; j+1 < len(cur.Content); j += 2 {
				if c := cur.Content[j]; !isMergeKey(c) && c.Value == seg {
					k, v = c, cur.Content[j+1]
					break
				}
			}
			if k == nil {
				return position.Span{}, false
			}
			if last {
				return position.Span{
					Start: t.start(k),
					End:   t.end(v, t.start(k).Column-1, flow),
				}, true
			}
			cur = v
		case yaml.SequenceNode:
			idx, ok := indexSegment(seg)
			if !ok || idx >= len(cur.Content) {
				return position.Span{}, false
			}
			item := cur.Content[idx]
			if last {
				return position.Span{
					Start: t.start(item),
					End:   t.end(item, t.indent(item.Line), flow),
				}, true
			}
			cur = item
		default:
			return position.Span{}, false
		}
	}
	return position.Span{}, false
}

// start returns the one-based byte position of n. yaml.v3 reports columns in
// characters.
func (t *yamlTree) start(n *yaml.Node) position.Pos {
	return position.Pos{Line: n.Line, Column: t.byteColumn(n.Line, n.Column)}
}

func (t *yamlTree) line(l int) string {
	if l < 1 || l > len(t.lines) {
		return ""
	}
	return strings.TrimSuffix(t.lines[l-1], "\r")
}

func (t *yamlTree) byteColumn(line, col int) int {
	s := t.line(line)
	b := 0
	for i := 1; i < col && b < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[b:])
		b += size
	}
	return b + 1
}

func (t *yamlTree) indent(line int) int {
	s := t.line(line)
	return len(s) - len(strings.TrimLeft(s, " "))
}

// offset returns the absolute byte offset of a one-based position.
func (t *yamlTree) offset(p position.Pos) int {
	off, ok := t.index.Offset(position.Position{Line: p.Line - 1, Character: p.Column - 1})
	if !ok {
		return 0
	}
	return off
}

// end returns the one-based position just past the value n. parentIndent is
// the column of the owning key, or the indentation of the owning sequence
// entry's line; continuation lines must be indented deeper.
func (t *yamlTree) end(n *yaml.Node, parentIndent int, flow bool) position.Pos {
	start := t.start(n)
	switch n.Kind {
	case yaml.AliasNode:
		return position.Pos{Line: start.Line, Column: start.Column + 1 + len(n.Value)}
	case yaml.MappingNode, yaml.SequenceNode:
		if n.Style&yaml.FlowStyle != 0 {
			return t.flowEnd(start)
		}
		if len(n.Content) == 0 {
			return start
		}
		last := n.Content[len(n.Content)-1]
		if n.Kind == yaml.MappingNode && len(n.Content) >= 2 {
			return t.end(last, t.start(n.Content[len(n.Content)-2]).Column-1, false)
		}
		return t.end(last, t.indent(last.Line), false)
	}

	switch {
	case n.Style&yaml.DoubleQuotedStyle != 0:
		return t.quotedEnd(start, '"')
	case n.Style&yaml.SingleQuotedStyle != 0:
		return t.quotedEnd(start, '\'')
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		return t.blockEnd(start, parentIndent)
	}
	return t.plainEnd(start, parentIndent, flow)
}

// quotedEnd scans for the closing quote of a quoted scalar that opens at
// start.
func (t *yamlTree) quotedEnd(start position.Pos, q byte) position.Pos {
	text := t.text
	off := t.offset(start) + 1
	for off < len(text) {
		c := text[off]
		switch {
		case q == '"' && c == '\\':
			off += 2
			continue
		case q == '\'' && c == '\'' && off+1 < len(text) && text[off+1] == '\'':
			off += 2
			continue
		case c == q:
			return t.index.Pos(off + 1)
		}
		off++
	}
	return t.index.Pos(len(text))
}

// blockEnd returns the end of the last non-blank content line of a literal
// or folded block scalar whose indicator is at start.
func (t *yamlTree) blockEnd(start position.Pos, parentIndent int) position.Pos {
	header := t.line(start.Line)
	end := position.Pos{Line: start.Line, Column: len(trimComment(header)) + 1}
	for l := start.Line + 1; l <= len(t.lines); l++ {
		s := t.line(l)
		if strings.TrimSpace(s) == "" {
			continue
		}
		if t.indent(l) <= parentIndent {
			break
		}
		end = position.Pos{Line: l, Column: len(strings.TrimRight(s, " \t")) + 1}
	}
	return end
}

// plainEnd returns the end of a plain scalar, following continuation lines
// in block context.
func (t *yamlTree) plainEnd(start position.Pos, parentIndent int, flow bool) position.Pos {
	s := t.line(start.Line)
	from := start.Column - 1
	if from > len(s) {
		from = len(s)
	}
	rest := s[from:]
	stop := len(rest)
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '#' && i > 0 && (rest[i-1] == ' ' || rest[i-1] == '\t') {
			stop = i
			break
		}
		if flow && (c == ',' || c == ']' || c == '}') {
			stop = i
			break
		}
		if flow && c == ':' && (i+1 == len(rest) || rest[i+1] == ' ') {
			stop = i
			break
		}
	}
	rest = strings.TrimRight(rest[:stop], " \t")
	end := position.Pos{Line: start.Line, Column: start.Column + len(rest)}
	if flow {
		return end
	}
	for l := start.Line + 1; l <= len(t.lines); l++ {
		s := t.line(l)
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if t.indent(l) <= parentIndent || strings.HasPrefix(trimmed, "#") {
			break
		}
		end = position.Pos{Line: l, Column: len(trimComment(s)) + 1}
	}
	return end
}

// flowEnd scans from an opening bracket to its matching close, skipping
// quoted strings.
func (t *yamlTree) flowEnd(start position.Pos) position.Pos {
	text := t.text
	off := t.offset(start)
	depth := 0
	for off < len(text) {
		switch c := text[off]; c {
		case '"', '\'':
			off++
			for off < len(text) && text[off] != c {
				if c == '"' && text[off] == '\\' {
					off++
				}
				off++
			}
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return t.index.Pos(off + 1)
			}
		}
		off++
	}
	return t.index.Pos(len(text))
}

// trimComment drops a trailing " # comment" and trailing blanks.
func trimComment(s string) string {
	for i := 1; i < len(s); i++ {
		if s[i] == '#' && (s[i-1] == ' ' || s[i-1] == '\t') {
			s = s[:i]
			break
		}
	}
	return strings.TrimRight(s, " \t\r")
}
