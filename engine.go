package intlsense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jward/intlsense/internal/config"
	"github.com/jward/intlsense/internal/fsys"
	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/schedule"
	"github.com/jward/intlsense/internal/store"
	"github.com/jward/intlsense/internal/usage"
	"github.com/jward/intlsense/internal/walker"
)

// Engine owns one translation index: the Store, the catalog walker and the
// background usage scheduler.
type Engine struct {
	store  *store.Store
	fs     fsys.FileSystem
	walker *walker.Walker
	sched  *schedule.Scheduler
	logger zerolog.Logger

	debounce         time.Duration
	yield            time.Duration
	workers          int
	ignore           map[string]bool
	disableWhenAddon bool

	// useParallel enables the parallel cold-start pipeline.
	useParallel bool

	// writeMu orders usage writes between the scheduler and cold-start
	// indexing, so a batch hashed before a drain never overwrites it.
	writeMu sync.Mutex

	onDrain func(int)
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFS sets the file system used for catalogs and sources. Defaults to the
// host file system.
func WithFS(f fsys.FileSystem) Option {
	return func(e *Engine) { e.fs = f }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDebounce sets the scheduler's quiet period.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithDrainYield sets the pause between drained scheduler entries.
func WithDrainYield(d time.Duration) Option {
	return func(e *Engine) { e.yield = d }
}

// WithWorkers bounds the cold-start extraction pool.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithParallel controls parallel cold-start extraction. When true (default),
// IndexFiles parses on a worker pool and commits all usages in one
// transaction. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) { e.useParallel = parallel }
}

// WithIgnore sets the directory names the cold-start scan skips.
func WithIgnore(names ...string) Option {
	return func(e *Engine) {
		e.ignore = make(map[string]bool, len(names))
		for _, n := range names {
			e.ignore[n] = true
		}
	}
}

// WithDisableWhenAddon controls whether projects depending on els-intl-addon
// get empty query results.
func WithDisableWhenAddon(disable bool) Option {
	return func(e *Engine) { e.disableWhenAddon = disable }
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.debounce = cfg.Debounce.Duration
		e.yield = cfg.DrainYield.Duration
		e.workers = cfg.Workers
		e.disableWhenAddon = cfg.DisableWhenAddon
		WithIgnore(cfg.WatchIgnore...)(e)
	}
}

// withDrainHook observes scheduler drains in tests.
func withDrainHook(fn func(int)) Option {
	return func(e *Engine) { e.onDrain = fn }
}

// New creates an Engine with an empty Store.
func New(opts ...Option) (*Engine, error) {
	defaults := config.Default()
	e := &Engine{
		fs:               fsys.OS{},
		logger:           zerolog.Nop(),
		debounce:         defaults.Debounce.Duration,
		yield:            defaults.DrainYield.Duration,
		workers:          defaults.Workers,
		disableWhenAddon: defaults.DisableWhenAddon,
		useParallel:      true,
		now:              time.Now,
	}
	WithIgnore(defaults.WatchIgnore...)(e)
	for _, opt := range opts {
		opt(e)
	}

	s, err := store.NewStore(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("intlsense: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("intlsense: migrate: %w", err)
	}
	e.store = s

	e.walker = walker.New(e.fs, walker.WithCache(s), walker.WithLogger(e.logger))

	schedOpts := []schedule.Option{
		schedule.WithDebounce(e.debounce),
		schedule.WithYield(e.yield),
		schedule.WithLogger(e.logger),
	}
	if e.onDrain != nil {
		schedOpts = append(schedOpts, schedule.WithDrainHook(e.onDrain))
	}
	e.sched = schedule.New(&usageHandler{e: e}, schedOpts...)
	return e, nil
}

// Run consumes submitted file changes until ctx is cancelled or the Engine
// is closed.
func (e *Engine) Run(ctx context.Context) error {
	return e.sched.Run(ctx)
}

// Close stops the scheduler and releases the Store.
func (e *Engine) Close() error {
	e.sched.Close()
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Pending returns the number of queued file changes.
func (e *Engine) Pending() int {
	return e.sched.Pending()
}

// SubmitFileChange queues re-extraction of a changed template or script. key
// identifies the file across submits; a nil file reports its deletion and
// queues the removal of its usages behind any extraction already running.
func (e *Engine) SubmitFileChange(kind Kind, key string, file *string) {
	e.sched.Submit(schedule.Task{Kind: string(kind), Key: key, File: file})
}

// WalkCatalogs walks the catalogs under root.
func (e *Engine) WalkCatalogs(ctx context.Context, root string) (*CatalogResult, error) {
	return e.walker.Walk(ctx, root)
}

// LookupExact returns the stored definitions and usages of key, or nil when
// the Store knows nothing about it. Definitions reflect the most recent walk
// of each root.
func (e *Engine) LookupExact(key string) (*TranslationEntry, error) {
	defs, err := e.store.DefinitionsByKey(key)
	if err != nil {
		return nil, fmt.Errorf("intlsense: lookup %q: %w", key, err)
	}
	uses, err := e.usages(key)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 && len(uses) == 0 {
		return nil, nil
	}

	entry := &TranslationEntry{Key: key, Usages: uses}
	for _, d := range defs {
		entry.Locales = append(entry.Locales, Definition{
			Locale: d.Locale,
			Text:   d.Text,
			Path:   d.Path,
			URI:    position.FileURI(d.Path),
			Range:  storedRange(d.StartLine, d.StartCol, d.EndLine, d.EndCol),
		})
	}
	return entry, nil
}

// Keys returns every key known to the Store.
func (e *Engine) Keys() ([]string, error) {
	return e.store.Keys()
}

func (e *Engine) usages(key string) ([]Usage, error) {
	rows, err := e.store.UsagesByKey(key)
	if err != nil {
		return nil, fmt.Errorf("intlsense: usages of %q: %w", key, err)
	}
	out := make([]Usage, 0, len(rows))
	for _, u := range rows {
		out = append(out, Usage{URI: u.URI, Range: storedRange(u.StartLine, u.StartCol, u.EndLine, u.EndCol)})
	}
	return out, nil
}

func storedRange(sl, sc, el, ec int) Range {
	return Range{
		Start: Position{Line: sl, Character: sc},
		End:   Position{Line: el, Character: ec},
	}
}

// packageManifest is the part of package.json the addon check reads.
type packageManifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Enabled reports whether queries for root produce results. A project that
// depends on els-intl-addon is served by that addon instead.
func (e *Engine) Enabled(root string) bool {
	if !e.disableWhenAddon {
		return true
	}
	content, err := e.fs.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return true
	}
	var m packageManifest
	if err := json.Unmarshal(content, &m); err != nil {
		e.logger.Debug().Err(err).Str("root", root).Msg("Unreadable package.json")
		return true
	}
	_, dep := m.Dependencies[IntlAddon]
	_, dev := m.DevDependencies[IntlAddon]
	if dep || dev {
		e.logger.Info().Str("root", root).Msg("Detected els-intl-addon, translation queries disabled")
		return false
	}
	return true
}

// usageHandler drains scheduler tasks into the Store.
type usageHandler struct {
	e *Engine
}

func (h *usageHandler) Process(ctx context.Context, t schedule.Task) error {
	if t.File == nil {
		return nil
	}
	h.e.writeMu.Lock()
	defer h.e.writeMu.Unlock()
	item, skip, err := h.e.prepareSource(usage.Kind(t.Kind), *t.File)
	if err != nil || skip {
		return err
	}
	_, err = h.e.extractSource(ctx, item, h.e.store)
	return err
}

func (h *usageHandler) Remove(_ context.Context, t schedule.Task) error {
	h.e.writeMu.Lock()
	defer h.e.writeMu.Unlock()
	path := t.Key
	if t.File != nil {
		path = *t.File
	}
	if err := h.e.store.DeleteSourceFile(path); err != nil {
		return fmt.Errorf("intlsense: remove usages of %s: %w", path, err)
	}
	return nil
}

// sourceItem is a template or script whose usages need re-extraction.
type sourceItem struct {
	path    string
	uri     string
	kind    usage.Kind
	content []byte
	hash    string
}

// prepareSource reads path and compares its hash with the Store. skip is
// true when the stored usages are current.
func (e *Engine) prepareSource(kind usage.Kind, path string) (sourceItem, bool, error) {
	content, err := fsys.Read(e.fs, path)
	if err != nil {
		return sourceItem{}, false, err
	}
	hash := store.ContentHash(content)

	existing, err := e.store.SourceFileByPath(path)
	if err != nil {
		return sourceItem{}, false, fmt.Errorf("lookup source file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return sourceItem{}, true, nil
	}
	return sourceItem{
		path:    path,
		uri:     position.FileURI(path),
		kind:    kind,
		content: content,
		hash:    hash,
	}, false, nil
}

// extractSource extracts the usages of item and replaces the file's usages
// through w. A file that fails to parse contributes no usages; its error is
// still returned.
func (e *Engine) extractSource(ctx context.Context, item sourceItem, w store.UsageWriter) (int, error) {
	sites, extractErr := usage.Extract(ctx, item.uri, item.content, item.kind)
	var pe *usage.ParseError
	if extractErr != nil && !errors.As(extractErr, &pe) {
		return 0, extractErr
	}

	rows := make([]*store.Usage, 0, len(sites))
	for _, s := range sites {
		rows = append(rows, &store.Usage{
			Key:       s.Key,
			StartLine: s.Range.Start.Line,
			StartCol:  s.Range.Start.Character,
			EndLine:   s.Range.End.Line,
			EndCol:    s.Range.End.Character,
		})
	}
	f := &store.SourceFile{
		Path:        item.path,
		URI:         item.uri,
		Kind:        string(item.kind),
		Hash:        item.hash,
		LastIndexed: e.now(),
	}
	if extractErr != nil {
		// Keep no hash so the next save is re-parsed.
		f.Hash = ""
	}
	if err := w.ReplaceUsages(f, rows); err != nil {
		return 0, fmt.Errorf("store usages: %w", err)
	}
	return len(rows), extractErr
}
