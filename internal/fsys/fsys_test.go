package fsys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFS_TranslatesPaths(t *testing.T) {
	t.Parallel()
	mfs := fstest.MapFS{
		"translations/en-us.json": {Data: []byte(`{"a":"b"}`)},
		"app/templates/x.hbs":     {Data: []byte(`{{t "a"}}`)},
	}
	f := FromFS(mfs, "/project")

	data, err := f.ReadFile("/project/translations/en-us.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(data))

	assert.True(t, IsDir(f, "/project/translations"))
	assert.True(t, Exists(f, "/project/app/templates/x.hbs"))
	assert.False(t, Exists(f, "/project/missing"))

	entries, err := f.ReadDir("/project")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"app", "translations"}, names)
}

func TestFromFS_RejectsPathsOutsideRoot(t *testing.T) {
	t.Parallel()
	f := FromFS(fstest.MapFS{}, "/project")

	_, err := f.ReadFile("/etc/passwd")
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestRead_WrapsReadError(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "nope.json")

	_, err := Read(OS{}, missing)
	require.Error(t, err)

	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, missing, re.Path)
	assert.True(t, IsNotExist(err))
}

func TestOS_ReadsDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(p, []byte("a: b\n"), 0o644))

	data, err := Read(OS{}, p)
	require.NoError(t, err)
	assert.Equal(t, "a: b\n", string(data))
	assert.True(t, IsDir(OS{}, dir))
}
