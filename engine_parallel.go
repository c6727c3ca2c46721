package intlsense

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jward/intlsense/internal/fsys"
	"github.com/jward/intlsense/internal/store"
	"github.com/jward/intlsense/internal/usage"
)

// IndexDirectory scans root for templates and scripts and records their
// usages. Inside a git repository it lists files with git ls-files so
// .gitignore is respected; otherwise it walks the tree, skipping hidden and
// ignored directories.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (IndexStats, error) {
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.logger.Debug().Err(err).Str("root", root).Msg("git ls-files unavailable, walking")
		paths, err = e.walkListFiles(root)
		if err != nil {
			return IndexStats{}, err
		}
	}
	return e.IndexFiles(ctx, paths)
}

// IndexFiles records the usages of the given files. Unsupported extensions
// are ignored and unchanged files (same content hash) are skipped. Files
// that cannot be read or parsed are logged and counted in Failed.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (IndexStats, error) {
	if e.useParallel {
		return e.indexFilesParallel(ctx, paths)
	}
	return e.indexFilesSerial(ctx, paths)
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (IndexStats, error) {
	var stats IndexStats
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		kind, ok := usage.KindForPath(path)
		if !ok {
			continue
		}
		stats.Files++
		e.indexOne(ctx, &stats, kind, path)
	}
	return stats, nil
}

func (e *Engine) indexOne(ctx context.Context, stats *IndexStats, kind usage.Kind, path string) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	item, skip, err := e.prepareSource(kind, path)
	if err != nil {
		e.indexFailed(stats, path, err)
		return
	}
	if skip {
		stats.Unchanged++
		return
	}
	n, err := e.extractSource(ctx, item, e.store)
	stats.Usages += n
	if err != nil {
		e.indexFailed(stats, path, err)
	}
}

func (e *Engine) indexFailed(stats *IndexStats, path string, err error) {
	stats.Failed++
	e.logger.Warn().Err(err).Str("path", path).Msg("Skipping source file")
}

// indexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Read, hash and compare with the Store.
//	Phase B (parallel): Parse and extract on a worker pool into a BatchedStore.
//	Phase C (serial):   Commit the batch to SQLite in one transaction.
//
// Scheduler drains wait until the batch is committed.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) (IndexStats, error) {
	var stats IndexStats
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// ---- Phase A: Serial preparation ----
	var items []sourceItem
	for _, path := range paths {
		kind, ok := usage.KindForPath(path)
		if !ok {
			continue
		}
		stats.Files++
		item, skip, err := e.prepareSource(kind, path)
		if err != nil {
			e.indexFailed(&stats, path, err)
			continue
		}
		if skip {
			stats.Unchanged++
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return stats, nil
	}

	// ---- Phase B: Parallel extraction ----
	numWorkers := max(1, min(e.workers, len(items)))

	workCh := make(chan sourceItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item sourceItem
		n    int
		err  error
	}
	resultCh := make(chan result, len(items))
	batch := store.NewBatchedStore()

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{item: item, err: ctx.Err()}
					continue
				}
				n, err := e.extractSource(ctx, item, batch)
				resultCh <- result{item: item, n: n, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		stats.Usages += res.n
		if res.err != nil {
			e.indexFailed(&stats, res.item.path, res.err)
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// ---- Phase C: Serial commit ----
	if err := e.store.CommitBatch(batch); err != nil {
		return stats, fmt.Errorf("intlsense: commit usages: %w", err)
	}
	e.logger.Debug().
		Int("files", stats.Files).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Int("usages", stats.Usages).
		Msg("Indexed sources")
	return stats, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) templates and scripts under root. It only applies to the host
// file system.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	if _, ok := e.fs.(fsys.OS); !ok {
		return nil, fmt.Errorf("git ls-files: not on the host file system")
	}
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if e.ignoredPath(line) {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := usage.KindForPath(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// ignoredPath reports whether a slash-separated relative path runs through
// an ignored directory.
func (e *Engine) ignoredPath(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if e.ignore[dir] {
			return true
		}
	}
	return false
}

// walkListFiles discovers files by walking the file system, used when git is
// not available. Skips hidden and ignored directories.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := e.fs.ReadDir(dir)
		if err != nil {
			return &fsys.ReadError{Path: dir, Err: err}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, d := range entries {
			name := d.Name()
			p := filepath.Join(dir, name)
			if d.IsDir() {
				if strings.HasPrefix(name, ".") || e.ignore[name] {
					continue
				}
				if err := walk(p); err != nil {
					e.logger.Warn().Err(err).Str("path", p).Msg("Skipping directory")
				}
				continue
			}
			if _, ok := usage.KindForPath(p); ok {
				paths = append(paths, p)
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
