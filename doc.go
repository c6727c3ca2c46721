// Package intlsense indexes the translation catalogs and translation-helper
// call sites of an Ember-style project and answers editor queries about
// translation keys: completion, go-to-definition and hover.
//
// # Pipeline
//
// The index has two halves with different freshness rules:
//
//  1. Definitions: every query walks the project's catalog directory
//     (translations/ or app/locales/). Catalog files are parsed once per
//     content hash and cached in the Store, so an unchanged catalog costs a
//     read and a hash.
//
//  2. Usages: templates and scripts are scanned for `t` calls. A cold start
//     uses [Engine.IndexDirectory]; afterwards [Engine.SubmitFileChange]
//     feeds a debounced background queue that re-extracts one file at a
//     time and replaces that file's usages in a single transaction.
//
// # Usage
//
//	e, err := intlsense.New()
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	go e.Run(ctx)
//	_, err = e.IndexDirectory(ctx, "path/to/project")
//
//	items, err := e.CompleteAt(ctx, root, uri, content, pos)
//	hover, err := e.Hover(ctx, root, uri, content, pos)
//
// # Query API
//
//   - [Engine.Complete] and [Engine.CompleteAt]: key completion inside a
//     `t` literal, matching keys and translated texts case-insensitively.
//   - [Engine.Definition] and [Engine.DefinitionAt]: catalog entries and
//     recorded usages of the exact key.
//   - [Engine.Hover]: the key's translations, one `locale : text` line each.
//   - [Engine.LookupExact]: the stored entry for a key.
//
// Positions and ranges are zero-based with byte columns.
package intlsense
