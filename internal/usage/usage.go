// Package usage finds the call sites of the translation helper in templates
// and scripts.
package usage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/script"
	"github.com/jward/intlsense/internal/template"
)

// Helper is the name of the translation helper in templates and the
// property name of the translation call in scripts.
const Helper = "t"

// Kind is the source kind of a file that may reference translation keys.
type Kind string

const (
	KindTemplate Kind = "template"
	KindScript   Kind = "script"
)

// KindForPath classifies a path or URI by extension.
func KindForPath(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hbs", ".handlebars":
		return KindTemplate, true
	}
	if _, ok := script.LanguageForFile(path); ok {
		return KindScript, true
	}
	return "", false
}

// Site is one occurrence of a translation key literal.
type Site struct {
	Key   string
	Range position.Range
}

// ParseError reports a source file that could not be parsed. The file
// contributes no usages.
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("usage: parse %s: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extract returns the translation call sites in content, in source order.
func Extract(ctx context.Context, uri string, content []byte, kind Kind) ([]Site, error) {
	switch kind {
	case KindTemplate:
		return extractTemplate(uri, content)
	case KindScript:
		return extractScript(ctx, uri, content)
	}
	return nil, fmt.Errorf("usage: unknown kind %q", kind)
}

func extractTemplate(uri string, content []byte) ([]Site, error) {
	prog, err := template.Parse(content)
	if err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}

	var sites []Site
	template.Walk(prog, func(n template.Node, _ []template.Node) bool {
		if lit, ok := TemplateKey(n); ok {
			sites = append(sites, Site{Key: lit.Value, Range: lit.Span().Range()})
		}
		return true
	})
	return sites, nil
}

// TemplateKey returns the key literal of a helper invocation: a mustache or
// sub-expression whose path is the plain helper name and whose first param
// is a string literal.
func TemplateKey(n template.Node) (*template.StringLiteral, bool) {
	var path template.Expression
	var params []template.Expression
	switch v := n.(type) {
	case *template.Mustache:
		path, params = v.Path, v.Params
	case *template.SubExpression:
		path, params = v.Path, v.Params
	default:
		return nil, false
	}
	if !IsHelperPath(path) || len(params) == 0 {
		return nil, false
	}
	lit, ok := params[0].(*template.StringLiteral)
	return lit, ok
}

// IsHelperPath reports whether e is the bare helper name.
func IsHelperPath(e template.Expression) bool {
	p, ok := e.(*template.PathExpression)
	return ok && p.Head == template.HeadPlain && p.Original == Helper
}

func extractScript(ctx context.Context, uri string, content []byte) ([]Site, error) {
	lang, ok := script.LanguageForFile(uri)
	if !ok {
		lang = script.JavaScript
	}
	tree, err := script.Parse(ctx, content, lang)
	if err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}
	defer tree.Close()
	if tree.Root().HasError() {
		return nil, &ParseError{URI: uri, Err: fmt.Errorf("syntax error")}
	}

	var sites []Site
	script.Walk(tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		if arg, _, ok := ScriptKey(tree, n); ok {
			key, _ := tree.StringValue(arg)
			sites = append(sites, Site{Key: key, Range: script.Range(arg)})
		}
		return true
	})
	return sites, nil
}

// ScriptKey matches `<object>.t('key', ...)`. It returns the string argument
// and the callee's property node.
func ScriptKey(tree *script.Tree, call *sitter.Node) (arg, property *sitter.Node, ok bool) {
	if call == nil || call.Type() != "call_expression" {
		return nil, nil, false
	}
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "member_expression" {
		return nil, nil, false
	}
	property = callee.ChildByFieldName("property")
	if property == nil || tree.Text(property) != Helper {
		return nil, nil, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil, nil, false
	}
	named := script.NamedChildren(args)
	if len(named) == 0 || named[0].Type() != "string" {
		return nil, nil, false
	}
	if _, ok := tree.StringValue(named[0]); !ok {
		return nil, nil, false
	}
	return named[0], property, true
}
