// Package walker discovers a project's translation catalogs, parses them and
// returns every definition keyed by translation key.
//
// Two layouts are recognized, and the first one present wins:
//
//	<root>/translations/**/*.{json,yaml,yml}
//	<root>/app/locales/<locale>/translations.{js,json}
//
// Parsed catalogs are cached by content hash, so a walk over unchanged files
// costs one read and one hash per file.
package walker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jward/intlsense/internal/catalog"
	"github.com/jward/intlsense/internal/fsys"
	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/store"
)

// Layout identifies which catalog layout a project uses.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutTranslations
	LayoutLocales
)

func (l Layout) String() string {
	switch l {
	case LayoutTranslations:
		return "translations"
	case LayoutLocales:
		return "locales"
	}
	return "none"
}

const (
	translationsDir = "translations"
	localesDir      = "app/locales"
	localesBase     = "translations"
)

// localesExts is the per-locale file preference order.
var localesExts = []string{".js", ".json"}

// Cache persists parsed catalog files between walks. *store.Store
// implements it.
type Cache interface {
	CatalogFileByPath(path string) (*store.CatalogFile, error)
	DefinitionsByFile(fileID int64) ([]*store.Definition, error)
	ReplaceCatalogFile(f *store.CatalogFile, defs []*store.Definition) error
	DeleteCatalogFilesNotIn(root string, keep []string) (int64, error)
}

// Definition is one catalog entry for a key.
type Definition struct {
	Locale string         `json:"locale"`
	Text   string         `json:"text"`
	Path   string         `json:"path"`
	URI    string         `json:"uri"`
	Range  position.Range `json:"range"`
}

// Result is the outcome of one walk.
type Result struct {
	Layout Layout

	// Keys lists every key in first-seen order.
	Keys        []string
	Definitions map[string][]Definition

	// Files lists the catalog files that contributed, in walk order.
	Files []string

	// Errors holds the per-file failures that were skipped.
	Errors []error
}

// Lookup returns the definitions of key, or nil.
func (r *Result) Lookup(key string) []Definition {
	return r.Definitions[key]
}

// Len returns the total number of definitions.
func (r *Result) Len() int {
	n := 0
	for _, defs := range r.Definitions {
		n += len(defs)
	}
	return n
}

func (r *Result) add(key string, d Definition) {
	if _, ok := r.Definitions[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Definitions[key] = append(r.Definitions[key], d)
}

// Walker walks catalog directories.
type Walker struct {
	fs     fsys.FileSystem
	cache  Cache
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithCache enables the parsed-catalog cache.
func WithCache(c Cache) Option {
	return func(w *Walker) {
		w.cache = c
	}
}

// WithLogger sets the logger skipped files are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Walker) {
		w.logger = l
	}
}

// New returns a Walker reading through f.
func New(f fsys.FileSystem, opts ...Option) *Walker {
	w := &Walker{
		fs:     f,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DetectLayout returns the catalog layout present under root.
func DetectLayout(f fsys.FileSystem, root string) Layout {
	if fsys.IsDir(f, filepath.Join(root, translationsDir)) {
		return LayoutTranslations
	}
	if fsys.IsDir(f, filepath.Join(root, filepath.FromSlash(localesDir))) {
		return LayoutLocales
	}
	return LayoutNone
}

// catalogFile is one catalog discovered on disk.
type catalogFile struct {
	path   string
	locale string
}

// Walk walks the catalogs under root. Unreadable or malformed files are
// logged, recorded in Result.Errors and skipped; the walk itself only fails
// when ctx is done.
func (w *Walker) Walk(ctx context.Context, root string) (*Result, error) {
	root = filepath.Clean(root)
	res := &Result{
		Layout:      DetectLayout(w.fs, root),
		Definitions: make(map[string][]Definition),
	}

	var files []catalogFile
	switch res.Layout {
	case LayoutTranslations:
		files = w.listTranslations(ctx, res, filepath.Join(root, translationsDir), "")
	case LayoutLocales:
		files = w.listLocales(res, filepath.Join(root, filepath.FromSlash(localesDir)))
	}

	seen := make([]string, 0, len(files))
	for _, cf := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen = append(seen, cf.path)
		defs, err := w.load(root, cf)
		if err != nil {
			w.skip(res, cf.path, err)
			continue
		}
		res.Files = append(res.Files, cf.path)
		for _, d := range defs {
			res.add(d.Key, Definition{
				Locale: cf.locale,
				Text:   d.Text,
				Path:   cf.path,
				URI:    position.FileURI(cf.path),
				Range: position.Range{
					Start: position.Position{Line: d.StartLine, Character: d.StartCol},
					End:   position.Position{Line: d.EndLine, Character: d.EndCol},
				},
			})
		}
	}

	if w.cache != nil {
		if n, err := w.cache.DeleteCatalogFilesNotIn(root, seen); err != nil {
			w.logger.Warn().Err(err).Str("root", root).Msg("Failed to evict stale catalogs")
		} else if n > 0 {
			w.logger.Debug().Int64("evicted", n).Str("root", root).Msg("Evicted stale catalogs")
		}
	}

	w.logger.Debug().
		Str("root", root).
		Str("layout", res.Layout.String()).
		Int("files", len(res.Files)).
		Int("keys", len(res.Keys)).
		Msg("Walked catalogs")
	return res, nil
}

func (w *Walker) skip(res *Result, path string, err error) {
	res.Errors = append(res.Errors, err)
	w.logger.Warn().Err(err).Str("path", path).Msg("Skipping catalog file")
}

// listTranslations recursively lists catalogs under dir in name order.
// Directory names that look like locale tags set the locale for everything
// beneath them.
func (w *Walker) listTranslations(ctx context.Context, res *Result, dir, locale string) []catalogFile {
	if ctx.Err() != nil {
		return nil
	}
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		w.skip(res, dir, &fsys.ReadError{Path: dir, Err: err})
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []catalogFile
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := filepath.Join(dir, name)
		if e.IsDir() {
			sub := locale
			if IsLocaleTag(name) {
				sub = name
			}
			out = append(out, w.listTranslations(ctx, res, p, sub)...)
			continue
		}
		if _, ok := catalog.FormatForFile(name); !ok {
			continue
		}
		out = append(out, catalogFile{path: p, locale: FileLocale(name, locale)})
	}
	return out
}

// listLocales lists <dir>/<locale>/translations.{js,json}, preferring .js.
func (w *Walker) listLocales(res *Result, dir string) []catalogFile {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		w.skip(res, dir, &fsys.ReadError{Path: dir, Err: err})
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []catalogFile
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		for _, ext := range localesExts {
			p := filepath.Join(dir, e.Name(), localesBase+ext)
			if fsys.Exists(w.fs, p) {
				out = append(out, catalogFile{path: p, locale: e.Name()})
				break
			}
		}
	}
	return out
}

// load returns the definitions of one catalog file, from the cache when its
// content hash is unchanged.
func (w *Walker) load(root string, cf catalogFile) ([]*store.Definition, error) {
	content, err := fsys.Read(w.fs, cf.path)
	if err != nil {
		return nil, err
	}
	hash := store.ContentHash(content)

	if w.cache != nil {
		cached, err := w.cache.CatalogFileByPath(cf.path)
		if err != nil {
			return nil, fmt.Errorf("walker: lookup cache: %w", err)
		}
		if cached != nil && cached.Hash == hash && cached.Locale == cf.locale {
			return w.cache.DefinitionsByFile(cached.ID)
		}
	}

	doc, err := catalog.Parse(cf.path, content)
	if err != nil {
		return nil, err
	}

	defs := make([]*store.Definition, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		r := doc.Span(entry.Key).Range()
		defs = append(defs, &store.Definition{
			Key:       entry.Key,
			Text:      entry.Text,
			StartLine: r.Start.Line,
			StartCol:  r.Start.Character,
			EndLine:   r.End.Line,
			EndCol:    r.End.Character,
		})
	}

	if w.cache != nil {
		f := &store.CatalogFile{
			Root:        root,
			Path:        cf.path,
			Locale:      cf.locale,
			Format:      doc.Format.String(),
			Hash:        hash,
			LastIndexed: w.now(),
		}
		if err := w.cache.ReplaceCatalogFile(f, defs); err != nil {
			// The parse succeeded; serve it uncached.
			w.logger.Warn().Err(err).Str("path", cf.path).Msg("Failed to cache catalog")
		}
	}
	return defs, nil
}

// IsParseError reports whether err is a malformed-catalog error.
func IsParseError(err error) bool {
	var pe *catalog.ParseError
	return errors.As(err, &pe)
}
