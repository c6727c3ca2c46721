// Package watch turns file-system events under a project root into usage
// re-extraction requests.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jward/intlsense/internal/usage"
)

// DefaultIgnore lists directory names that are never watched.
var DefaultIgnore = []string{".git", "node_modules", "dist", "tmp", "bower_components"}

// Submitter receives file changes. A nil file marks a deletion.
type Submitter interface {
	SubmitFileChange(kind usage.Kind, key string, file *string)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore replaces the ignored directory names.
func WithIgnore(names []string) Option {
	return func(w *Watcher) {
		w.ignore = make(map[string]bool, len(names))
		for _, n := range names {
			w.ignore[n] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// Watcher watches a project tree with fsnotify.
type Watcher struct {
	root   string
	sub    Submitter
	ignore map[string]bool
	logger zerolog.Logger
	fsw    *fsnotify.Watcher
}

// New creates a Watcher for root. Call Run to start watching.
func New(root string, sub Submitter, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{root: root, sub: sub, logger: zerolog.Nop(), fsw: fsw}
	WithIgnore(DefaultIgnore)(w)
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Run adds the tree under root and forwards events until ctx is cancelled
// or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", ev.Name).Msg("Watching new directory failed")
			}
			return
		}
	}

	kind, ok := usage.KindForPath(ev.Name)
	if !ok {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.logger.Debug().Str("path", ev.Name).Msg("File removed")
		w.sub.SubmitFileChange(kind, ev.Name, nil)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		path := ev.Name
		w.sub.SubmitFileChange(kind, path, &path)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if path == dir {
				return fmt.Errorf("watch: walk %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Watching directory failed")
		}
		return nil
	})
}

// Close stops the watcher and makes Run return.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
