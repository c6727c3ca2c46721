package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the intlsense binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "intlsense"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "intlsense")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the module by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod")
		}
		dir = parent
	}
}

// createEmberFixture writes a small Ember project with two catalogs and a
// template.
func createEmberFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"package.json":                       `{"name":"fixture","devDependencies":{"ember-intl":"^6.0.0"}}`,
		"translations/en-us.json":            `{"rootFileTranslation":"text 1"}`,
		"translations/sub-folder/en-us.json": `{"subFolderTranslation":{"subTranslation":"text 2","anotherTranslation":"another text"}}`,
		"app/templates/application.hbs":      "<h1>{{t \"rootFileTranslation\"}}</h1>\n<p>{{t \"subFolderTransla\"}}</p>\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// run executes the binary in dir and parses its JSON envelope.
func run(t *testing.T, bin, dir string, args ...string) map[string]any {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())
	stdout, err := cmd.Output()
	// Allow non-zero exit for error cases, but we always expect JSON on stdout.
	if err != nil && len(stdout) == 0 {
		t.Fatalf("command failed with no output: %v", err)
	}

	var result map[string]any
	require.NoError(t, json.Unmarshal(stdout, &result), "invalid JSON output: %s", string(stdout))
	return result
}

func TestCLI_Queries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := createEmberFixture(t)
	tmpl := filepath.Join("app", "templates", "application.hbs")

	t.Run("keys", func(t *testing.T) {
		result := run(t, bin, dir, "keys")
		assert.Equal(t, "keys", result["command"])
		assert.Equal(t, []any{
			"rootFileTranslation",
			"subFolderTranslation.subTranslation",
			"subFolderTranslation.anotherTranslation",
		}, result["results"])
	})

	t.Run("hover", func(t *testing.T) {
		result := run(t, bin, dir, "hover", tmpl, "0", "12")
		results, ok := result["results"].(map[string]any)
		require.True(t, ok, "hover should produce a result")
		assert.Equal(t, "en-us : text 1", results["contents"])
	})

	t.Run("complete", func(t *testing.T) {
		// Line 1 is `<p>{{t "subFolderTransla"}}</p>`; col 24 is before the closing quote.
		result := run(t, bin, dir, "complete", tmpl, "1", "24")
		items, ok := result["results"].([]any)
		require.True(t, ok)
		require.Len(t, items, 2)
		first := items[0].(map[string]any)
		assert.Equal(t, "subFolderTranslation.subTranslation", first["insert"])
		assert.EqualValues(t, 8, first["col"])
	})

	t.Run("definition", func(t *testing.T) {
		result := run(t, bin, dir, "definition", tmpl, "0", "12")
		locs, ok := result["results"].([]any)
		require.True(t, ok)
		require.Len(t, locs, 2, "one catalog entry and one usage")
		assert.True(t, strings.HasSuffix(locs[0].(map[string]any)["file"].(string), "en-us.json"))
	})

	t.Run("lookup missing", func(t *testing.T) {
		result := run(t, bin, dir, "lookup", "nope")
		assert.Equal(t, "key not found: nope", result["error"])
	})
}

func TestCLI_Index(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := createEmberFixture(t)

	result := run(t, bin, dir, "index")
	require.Empty(t, result["error"])
	stats, ok := result["results"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, stats["catalogs"])
	assert.EqualValues(t, 3, stats["keys"])
	assert.EqualValues(t, 1, stats["files"])
	assert.EqualValues(t, 2, stats["usages"])
	assert.EqualValues(t, 0, stats["unchanged"], "every run starts from an empty index")
}
