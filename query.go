package intlsense

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jward/intlsense/internal/focus"
)

// Complete returns completion items for the key literal in params.Focus.
// Every query walks the catalogs under root, so the items reflect the files
// on disk.
func (e *Engine) Complete(ctx context.Context, root string, params CompletionParams) ([]CompletionItem, error) {
	if params.Focus == nil || !e.Enabled(root) {
		return nil, nil
	}
	res, err := e.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	prefix := completionPrefix(params.Focus, params.Position)
	at := Position{Line: params.Position.Line, Character: params.Position.Character - len(prefix)}
	replace := Range{Start: at, End: at}

	fold := cases.Fold()
	folded := fold.String(prefix)

	var items []CompletionItem
	for _, key := range res.Keys {
		defs := res.Lookup(key)
		texts := make([]string, len(defs))
		lines := make([]string, len(defs))
		for i, d := range defs {
			texts[i] = d.Text
			lines[i] = d.Locale + " : " + d.Text
		}
		if !strings.Contains(fold.String(key+strings.Join(texts, ",")), folded) {
			continue
		}
		detail := strings.Join(lines, "\n")

		if strings.Contains(key, prefix) {
			items = append(items, CompletionItem{
				Label:   key,
				Kind:    CompletionKindValue,
				Range:   replace,
				NewText: key,
				Detail:  detail,
			})
		}
		for _, d := range defs {
			if !strings.Contains(fold.String(d.Text), folded) {
				continue
			}
			items = append(items, CompletionItem{
				Label:      d.Text,
				Kind:       CompletionKindValue,
				Range:      replace,
				NewText:    key,
				FilterText: d.Text + " " + d.Locale,
				Detail:     detail,
			})
		}
	}
	return items, nil
}

// completionPrefix returns the part of the literal typed before the caret.
// The placeholder marks the caret when present. Script literals may hide it,
// so there the prefix length is derived from the cursor and the column of
// the `t` property, minus the three characters of `t('`.
func completionPrefix(f *Focus, cursor Position) string {
	idx := strings.Index(f.Value, Placeholder)
	if idx < 0 {
		if f.PropertyColumn < 0 {
			return f.Value
		}
		idx = cursor.Character - f.PropertyColumn - 3
	}
	idx = min(max(idx, 0), len(f.Value))
	return f.Value[:idx]
}

// CompleteAt locates the key literal at pos in a document and completes it.
// Documents that fail to parse produce no items.
func (e *Engine) CompleteAt(ctx context.Context, root, uri string, content []byte, pos Position) ([]CompletionItem, error) {
	f, err := e.locate(ctx, uri, content, pos)
	if err != nil || f == nil {
		return nil, err
	}
	return e.Complete(ctx, root, CompletionParams{Position: pos, Focus: f})
}

// Definition returns the catalog entries of the literal's exact key, then
// its recorded usages.
func (e *Engine) Definition(ctx context.Context, root string, f *Focus) ([]Location, error) {
	if f == nil || !e.Enabled(root) {
		return nil, nil
	}
	res, err := e.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}

	var locs []Location
	for _, d := range res.Lookup(f.Value) {
		locs = append(locs, Location{URI: d.URI, Range: d.Range})
	}
	uses, err := e.usages(f.Value)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	for _, u := range uses {
		locs = append(locs, Location{URI: u.URI, Range: u.Range})
	}
	return locs, nil
}

// DefinitionAt locates the key literal at pos in a document and returns its
// definitions.
func (e *Engine) DefinitionAt(ctx context.Context, root, uri string, content []byte, pos Position) ([]Location, error) {
	f, err := e.locate(ctx, uri, content, pos)
	if err != nil || f == nil {
		return nil, err
	}
	return e.Definition(ctx, root, f)
}

// Hover returns the translations of the key literal at pos, anchored at the
// literal. It returns nil when the cursor is not on a key literal, the key
// is unknown or the document does not parse.
func (e *Engine) Hover(ctx context.Context, root, uri string, content []byte, pos Position) (*Hover, error) {
	if !e.Enabled(root) {
		return nil, nil
	}
	f, err := e.locate(ctx, uri, content, pos)
	if err != nil || f == nil {
		return nil, err
	}
	res, err := e.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("hover: %w", err)
	}
	defs := res.Lookup(f.Value)
	if len(defs) == 0 {
		return nil, nil
	}
	lines := make([]string, len(defs))
	for i, d := range defs {
		lines[i] = d.Locale + " : " + d.Text
	}
	return &Hover{Contents: strings.Join(lines, "\n"), Range: f.Range}, nil
}

// locate classifies the node at pos. A document parse failure is logged and
// reported as no focus.
func (e *Engine) locate(ctx context.Context, uri string, content []byte, pos Position) (*Focus, error) {
	f, err := focus.Locate(ctx, uri, content, pos)
	var pe *focus.ParseError
	if errors.As(err, &pe) {
		e.logger.Debug().Err(err).Str("uri", uri).Msg("Document does not parse")
		return nil, nil
	}
	return f, err
}
