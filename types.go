package intlsense

import (
	"github.com/jward/intlsense/internal/focus"
	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/store"
	"github.com/jward/intlsense/internal/usage"
	"github.com/jward/intlsense/internal/walker"
)

// Public aliases for the internal types that appear in the Engine API.

type Store = store.Store
type Position = position.Position
type Range = position.Range
type Location = position.Location
type Kind = usage.Kind
type Focus = focus.Focus
type Definition = walker.Definition
type CatalogResult = walker.Result

const (
	KindTemplate = usage.KindTemplate
	KindScript   = usage.KindScript
)

// Usage is one call site of a key.
type Usage struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TranslationEntry is everything the Store knows about one key.
type TranslationEntry struct {
	Key     string       `json:"key"`
	Locales []Definition `json:"locales"`
	Usages  []Usage      `json:"usages"`
}

// CompletionItemKind mirrors the LSP completion item kinds.
type CompletionItemKind int

// CompletionKindValue is the kind of every translation completion.
const CompletionKindValue CompletionItemKind = 12

// CompletionItem replaces Range with NewText, the full key.
type CompletionItem struct {
	Label      string             `json:"label"`
	Kind       CompletionItemKind `json:"kind"`
	Range      Range              `json:"range"`
	NewText    string             `json:"newText"`
	FilterText string             `json:"filterText,omitempty"`
	Detail     string             `json:"detail"`
}

// CompletionParams is the cursor and the classified literal under it.
type CompletionParams struct {
	Position Position
	Focus    *Focus
}

// Hover is plain-text hover content anchored at the key literal.
type Hover struct {
	Contents string `json:"contents"`
	Range    Range  `json:"range"`
}

// IndexStats summarizes a cold-start scan.
type IndexStats struct {
	Files     int
	Unchanged int
	Failed    int
	Usages    int
}
