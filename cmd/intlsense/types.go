package main

import (
	"github.com/jward/intlsense"
	"github.com/jward/intlsense/internal/position"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly location with a file path instead of a URI.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLITranslation is one locale's text for a key.
type CLITranslation struct {
	Locale string      `json:"locale"`
	Text   string      `json:"text"`
	At     CLILocation `json:"at"`
}

// CLIEntry is a key with its translations and usages.
type CLIEntry struct {
	Key          string           `json:"key"`
	Translations []CLITranslation `json:"translations"`
	Usages       []CLILocation    `json:"usages"`
}

// CLICompletion is a JSON-friendly completion item.
type CLICompletion struct {
	Label      string `json:"label"`
	Insert     string `json:"insert"`
	FilterText string `json:"filter_text,omitempty"`
	Detail     string `json:"detail"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
}

// CLIHover is a JSON-friendly hover.
type CLIHover struct {
	Contents string      `json:"contents"`
	At       CLILocation `json:"at"`
}

// CLIStats summarizes an index run.
type CLIStats struct {
	Root       string `json:"root"`
	Files      int    `json:"files"`
	Unchanged  int    `json:"unchanged"`
	Failed     int    `json:"failed"`
	Usages     int    `json:"usages"`
	Catalogs   int    `json:"catalogs"`
	Keys       int    `json:"keys"`
	DurationMS int64  `json:"duration_ms"`
}

// locationToCLI converts a URI and range to a CLILocation. URIs that are not
// file URIs are kept as they are.
func locationToCLI(uri string, r intlsense.Range) CLILocation {
	file := uri
	if p, err := position.PathFromURI(uri); err == nil {
		file = p
	}
	return CLILocation{
		File:      file,
		StartLine: r.Start.Line,
		StartCol:  r.Start.Character,
		EndLine:   r.End.Line,
		EndCol:    r.End.Character,
	}
}

// entryToCLI converts a TranslationEntry to a CLIEntry.
func entryToCLI(e *intlsense.TranslationEntry) CLIEntry {
	out := CLIEntry{
		Key:          e.Key,
		Translations: make([]CLITranslation, 0, len(e.Locales)),
		Usages:       make([]CLILocation, 0, len(e.Usages)),
	}
	for _, d := range e.Locales {
		out.Translations = append(out.Translations, CLITranslation{
			Locale: d.Locale,
			Text:   d.Text,
			At:     locationToCLI(d.URI, d.Range),
		})
	}
	for _, u := range e.Usages {
		out.Usages = append(out.Usages, locationToCLI(u.URI, u.Range))
	}
	return out
}

// completionToCLI converts a CompletionItem to a CLICompletion.
func completionToCLI(item intlsense.CompletionItem) CLICompletion {
	return CLICompletion{
		Label:      item.Label,
		Insert:     item.NewText,
		FilterText: item.FilterText,
		Detail:     item.Detail,
		Line:       item.Range.Start.Line,
		Col:        item.Range.Start.Character,
	}
}
