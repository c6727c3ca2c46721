package intlsense

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/intlsense/internal/fsys"
	"github.com/jward/intlsense/internal/position"
)

const testRoot = "/p"

func fixtureFS() fstest.MapFS {
	return fstest.MapFS{
		"translations/en-us.json": {Data: []byte(`{"rootFileTranslation":"text 1"}`)},
		"translations/sub-folder/en-us.json": {Data: []byte(
			`{"subFolderTranslation":{"subTranslation":"text 2","anotherTranslation":"another text"}}`)},
		"app/templates/index.hbs":     {Data: []byte("<h1>{{t \"rootFileTranslation\"}}</h1>\n")},
		"app/components/greeting.js":  {Data: []byte("export default class {\n  get label() {\n    return this.intl.t('subFolderTranslation.subTranslation');\n  }\n}\n")},
		"app/components/broken.hbs":   {Data: []byte(`{{#if a}}`)},
		"node_modules/x/index.js":     {Data: []byte("intl.t('rootFileTranslation');\n")},
		"app/styles/app.css":          {Data: []byte("body {}")},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func newFixtureEngine(t *testing.T, files fstest.MapFS, opts ...Option) *Engine {
	t.Helper()
	return newTestEngine(t, append([]Option{WithFS(fsys.FromFS(files, testRoot))}, opts...)...)
}

func rng(sl, sc, el, ec int) Range {
	return Range{
		Start: Position{Line: sl, Character: sc},
		End:   Position{Line: el, Character: ec},
	}
}

func TestNew_EmptyStore(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	require.NotNil(t, e.Store())

	keys, err := e.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 0, e.Pending())
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
		disable  bool
		want     bool
	}{
		{"no manifest", "", true, true},
		{"unrelated deps", `{"dependencies":{"ember-intl":"^6.0.0"}}`, true, true},
		{"addon in dependencies", `{"dependencies":{"els-intl-addon":"1.0.0"}}`, true, false},
		{"addon in devDependencies", `{"devDependencies":{"els-intl-addon":"1.0.0"}}`, true, false},
		{"check disabled", `{"devDependencies":{"els-intl-addon":"1.0.0"}}`, false, true},
		{"malformed manifest", `{"devDependencies":`, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			files := fstest.MapFS{}
			if tt.manifest != "" {
				files["package.json"] = &fstest.MapFile{Data: []byte(tt.manifest)}
			}
			e := newFixtureEngine(t, files, WithDisableWhenAddon(tt.disable))
			assert.Equal(t, tt.want, e.Enabled(testRoot))
		})
	}
}

func TestIndexDirectory_WalkFallback(t *testing.T) {
	t.Parallel()
	for _, parallel := range []bool{true, false} {
		e := newFixtureEngine(t, fixtureFS(), WithParallel(parallel))

		stats, err := e.IndexDirectory(context.Background(), testRoot)
		require.NoError(t, err)
		assert.Equal(t, IndexStats{Files: 3, Failed: 1, Usages: 2}, stats, "parallel=%v", parallel)

		uses, err := e.usages("rootFileTranslation")
		require.NoError(t, err)
		require.Len(t, uses, 1, "node_modules is ignored")
		assert.Equal(t, "file:///p/app/templates/index.hbs", uses[0].URI)
		assert.Equal(t, rng(0, 8, 0, 29), uses[0].Range)

		uses, err = e.usages("subFolderTranslation.subTranslation")
		require.NoError(t, err)
		require.Len(t, uses, 1)
		assert.Equal(t, rng(2, 23, 2, 60), uses[0].Range)

		again, err := e.IndexDirectory(context.Background(), testRoot)
		require.NoError(t, err)
		assert.Equal(t, 2, again.Unchanged)
		assert.Equal(t, 1, again.Failed, "unparseable files are retried")
	}
}

func TestIndexFiles_ParseFailureClearsUsages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.hbs")
	require.NoError(t, os.WriteFile(path, []byte(`{{t "a.b"}}`), 0o644))

	e := newTestEngine(t, WithParallel(false))
	_, err := e.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	uses, err := e.usages("a.b")
	require.NoError(t, err)
	require.Len(t, uses, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{{t "a.b"`), 0o644))
	stats, err := e.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	uses, err = e.usages("a.b")
	require.NoError(t, err)
	assert.Empty(t, uses)
}

func TestLookupExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newFixtureEngine(t, fixtureFS())

	entry, err := e.LookupExact("rootFileTranslation")
	require.NoError(t, err)
	assert.Nil(t, entry, "nothing walked or indexed yet")

	_, err = e.WalkCatalogs(ctx, testRoot)
	require.NoError(t, err)
	_, err = e.IndexDirectory(ctx, testRoot)
	require.NoError(t, err)

	entry, err = e.LookupExact("rootFileTranslation")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, entry.Locales, 1)
	assert.Equal(t, "en-us", entry.Locales[0].Locale)
	assert.Equal(t, "text 1", entry.Locales[0].Text)
	assert.Equal(t, "file:///p/translations/en-us.json", entry.Locales[0].URI)
	require.Len(t, entry.Usages, 1)

	entry, err = e.LookupExact("subFolderTranslation")
	require.NoError(t, err)
	assert.Nil(t, entry, "prefixes of keys are not keys")

	keys, err := e.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"rootFileTranslation",
		"subFolderTranslation.subTranslation",
		"subFolderTranslation.anotherTranslation",
	}, keys)
}

// waitDrain returns a drain hook and a function that blocks until the next
// drain reports.
func waitDrain(t *testing.T) (Option, func() int) {
	t.Helper()
	ch := make(chan int, 16)
	hook := withDrainHook(func(n int) { ch <- n })
	return hook, func() int {
		t.Helper()
		select {
		case n := <-ch:
			return n
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for drain")
			return 0
		}
	}
}

func TestSubmitFileChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.hbs")
	require.NoError(t, os.WriteFile(path, []byte(`{{t "first"}} {{t "second"}}`), 0o644))

	hook, wait := waitDrain(t)
	e := newTestEngine(t, WithDebounce(10*time.Millisecond), WithDrainYield(0), hook)

	for range 3 {
		e.SubmitFileChange(KindTemplate, path, &path)
	}
	assert.Equal(t, 1, e.Pending(), "resubmits coalesce")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	assert.Equal(t, 1, wait())
	uses, err := e.usages("second")
	require.NoError(t, err)
	require.Len(t, uses, 1)
	assert.Equal(t, position.FileURI(path), uses[0].URI)

	require.NoError(t, os.WriteFile(path, []byte(`{{t "first"}}`), 0o644))
	e.SubmitFileChange(KindTemplate, path, &path)
	assert.Equal(t, 1, wait())

	uses, err = e.usages("second")
	require.NoError(t, err)
	assert.Empty(t, uses, "removed call sites are forgotten")

	e.SubmitFileChange(KindTemplate, path, nil)
	assert.Equal(t, 1, wait())
	uses, err = e.usages("first")
	require.NoError(t, err)
	assert.Empty(t, uses, "deletion drops the file's usages")
	assert.Equal(t, 0, e.Pending())
}

// blockingFS holds the first ReadFile until release is closed.
type blockingFS struct {
	fsys.FileSystem
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingFS) ReadFile(name string) ([]byte, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.FileSystem.ReadFile(name)
}

func TestSubmitFileChange_DeletionDuringExtraction(t *testing.T) {
	t.Parallel()
	files := fstest.MapFS{
		"app/templates/a.hbs": {Data: []byte(`{{t "gone"}}`)},
	}
	bfs := &blockingFS{
		FileSystem: fsys.FromFS(files, testRoot),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	hook, wait := waitDrain(t)
	e := newTestEngine(t, WithFS(bfs), WithDebounce(10*time.Millisecond), WithDrainYield(0), hook)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	path := "/p/app/templates/a.hbs"
	e.SubmitFileChange(KindTemplate, path, &path)
	select {
	case <-bfs.started:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never started")
	}

	e.SubmitFileChange(KindTemplate, path, nil)
	close(bfs.release)
	assert.Equal(t, 1, wait())
	assert.Equal(t, 1, wait())

	uses, err := e.usages("gone")
	require.NoError(t, err)
	assert.Empty(t, uses, "usages written by the in-flight extraction are removed")
}

// editableFS serves one file whose content can change, and holds the first
// read after it has returned the content current at that time.
type editableFS struct {
	fsys.FileSystem
	path string

	mu      sync.Mutex
	content []byte

	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (f *editableFS) set(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = []byte(content)
}

func (f *editableFS) ReadFile(name string) ([]byte, error) {
	if name != f.path {
		return f.FileSystem.ReadFile(name)
	}
	f.mu.Lock()
	data := append([]byte(nil), f.content...)
	f.mu.Unlock()
	f.once.Do(func() {
		close(f.started)
		<-f.release
	})
	return data, nil
}

func TestIndexFiles_DoesNotOverwriteNewerDrain(t *testing.T) {
	t.Parallel()
	path := "/p/app/templates/a.hbs"
	efs := &editableFS{
		FileSystem: fsys.FromFS(fstest.MapFS{}, testRoot),
		path:       path,
		content:    []byte(`{{t "old"}}`),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	hook, wait := waitDrain(t)
	e := newTestEngine(t, WithFS(efs), WithParallel(true), WithDebounce(time.Millisecond), WithDrainYield(0), hook)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	done := make(chan error, 1)
	go func() {
		_, err := e.IndexFiles(ctx, []string{path})
		done <- err
	}()
	select {
	case <-efs.started:
	case <-time.After(5 * time.Second):
		t.Fatal("indexing never read the file")
	}

	efs.set(`{{t "new"}}`)
	e.SubmitFileChange(KindTemplate, path, &path)
	time.Sleep(50 * time.Millisecond)
	close(efs.release)

	require.NoError(t, <-done)
	assert.Equal(t, 1, wait())

	uses, err := e.usages("new")
	require.NoError(t, err)
	assert.Len(t, uses, 1, "the drain sees the committed batch and re-extracts")
	uses, err = e.usages("old")
	require.NoError(t, err)
	assert.Empty(t, uses)
}
