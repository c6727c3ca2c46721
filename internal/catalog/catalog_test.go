package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/intlsense/internal/position"
)

func span(sl, sc, el, ec int) position.Span {
	return position.Span{Start: position.Pos{Line: sl, Column: sc}, End: position.Pos{Line: el, Column: ec}}
}

func TestFormatForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"translations/en-us.json", FormatJSON, true},
		{"translations/en-us.yaml", FormatYAML, true},
		{"translations/en-us.YML", FormatYAML, true},
		{"app/locales/en/translations.js", FormatScript, true},
		{"translations/README.md", 0, false},
	}
	for _, tt := range tests {
		got, ok := FormatForFile(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	_, err := Parse("notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestParseJSON_FlattensInSourceOrder(t *testing.T) {
	t.Parallel()
	src := `{
  "a": {
    "b": "hello"
  },
  "list": ["x", "y"],
  "empty": {},
  "n": 1
}
`
	doc, err := Parse("en-us.json", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, doc.Format)
	assert.Equal(t, []Entry{
		{Key: "a.b", Text: "hello"},
		{Key: "list.0", Text: "x"},
		{Key: "list.1", Text: "y"},
		{Key: "n", Text: "1"},
	}, doc.Entries)
}

func TestParseJSON_DeepNesting(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.json", []byte(`{"a":{"b":{"c":"x"}}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.b.c": "x"}, doc.Values())
}

func TestParseJSON_Locate(t *testing.T) {
	t.Parallel()
	src := `{
  "a": {
    "b": "hello"
  },
  "list": ["x", "y"]
}
`
	doc, err := Parse("en-us.json", []byte(src))
	require.NoError(t, err)

	got, ok := doc.Tree.Locate("a.b")
	require.True(t, ok)
	assert.Equal(t, span(3, 5, 3, 17), got)
	assert.Equal(t, position.Range{
		Start: position.Position{Line: 2, Character: 4},
		End:   position.Position{Line: 2, Character: 16},
	}, got.Range())

	got, ok = doc.Tree.Locate("a")
	require.True(t, ok)
	assert.Equal(t, span(2, 3, 4, 4), got)

	got, ok = doc.Tree.Locate("list.1")
	require.True(t, ok)
	assert.Equal(t, span(5, 17, 5, 20), got)

	_, ok = doc.Tree.Locate("a.missing")
	assert.False(t, ok)
	assert.Equal(t, position.DocumentStart, doc.Span("a.missing"))
}

func TestParseJSON_DuplicateKeysLastWins(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en-us.json", []byte(`{"greeting":"old","greeting":"new"}`))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: "greeting", Text: "new"}}, doc.Entries)

	got, ok := doc.Tree.Locate("greeting")
	require.True(t, ok)
	assert.Equal(t, span(1, 19, 1, 35), got, "points at the surviving property")

	doc, err = Parse("en-us.json", []byte(`{"a":{"x":"1"},"b":"2","a":{"y":"3"}}`))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "a.y", Text: "3"},
		{Key: "b", Text: "2"},
	}, doc.Entries, "a duplicate object replaces the earlier one in place")
}

func TestParseJSON_EscapedKeys(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.json", []byte(`{"café": "😀"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"café": "😀"}, doc.Values())

	_, ok := doc.Tree.Locate("café")
	assert.True(t, ok)
}

func TestParseJSON_Malformed(t *testing.T) {
	t.Parallel()
	_, err := Parse("/p/translations/en.json", []byte(`{"a": `))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "/p/translations/en.json", pe.Path)
	assert.Equal(t, FormatJSON, pe.Format)
}

const yamlCatalog = `greeting: Hello
nested:
  deep: "quoted # not comment"
  plain: some text # comment
  block: |
    line one
    line two
base: &base
  shared: from base
derived:
  <<: *base
  own: mine
ref: *base
`

func TestParseYAML_Flattens(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.yaml", []byte(yamlCatalog))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "greeting", Text: "Hello"},
		{Key: "nested.deep", Text: "quoted # not comment"},
		{Key: "nested.plain", Text: "some text"},
		{Key: "nested.block", Text: "line one\nline two\n"},
		{Key: "base.shared", Text: "from base"},
		{Key: "derived.shared", Text: "from base"},
		{Key: "derived.own", Text: "mine"},
		{Key: "ref.shared", Text: "from base"},
	}, doc.Entries)
}

func TestParseYAML_Locate(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.yaml", []byte(yamlCatalog))
	require.NoError(t, err)

	tests := []struct {
		key  string
		want position.Span
	}{
		{"greeting", span(1, 1, 1, 16)},
		{"nested.deep", span(3, 3, 3, 31)},
		{"nested.plain", span(4, 3, 4, 19)},
		{"nested.block", span(5, 3, 7, 13)},
		{"derived.own", span(12, 3, 12, 12)},
	}
	for _, tt := range tests {
		got, ok := doc.Tree.Locate(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestParseYAML_AliasedKeysAreNotLocated(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.yaml", []byte(yamlCatalog))
	require.NoError(t, err)

	for _, key := range []string{"derived.shared", "ref.shared"} {
		_, ok := doc.Tree.Locate(key)
		assert.False(t, ok, key)
		assert.Equal(t, position.DocumentStart, doc.Span(key), key)
	}
}

func TestParseYAML_MultibyteColumnsAreBytes(t *testing.T) {
	t.Parallel()
	doc, err := Parse("fr.yaml", []byte("é: x\nnext: déjà vu\n"))
	require.NoError(t, err)

	got, ok := doc.Tree.Locate("é")
	require.True(t, ok)
	assert.Equal(t, span(1, 1, 1, 6), got)

	got, ok = doc.Tree.Locate("next")
	require.True(t, ok)
	// "déjà vu" is 9 bytes starting at byte column 7.
	assert.Equal(t, span(2, 1, 2, 16), got)
}

func TestParseYAML_Empty(t *testing.T) {
	t.Parallel()
	doc, err := Parse("en.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Entries)
	assert.Equal(t, position.DocumentStart, doc.Span("anything"))
}

func TestParseYAML_Malformed(t *testing.T) {
	t.Parallel()
	_, err := Parse("en.yaml", []byte("a: [1, 2\n"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, FormatYAML, pe.Format)
}

func TestParseScript_ExportDefault(t *testing.T) {
	t.Parallel()
	src := `export default {
  hello: 'Hello',
  'sub': { deep: ` + "`tpl`" + ` },
  computed: someVar,
};
`
	doc, err := Parse("app/locales/en/translations.js", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, FormatScript, doc.Format)
	assert.Equal(t, []Entry{
		{Key: "hello", Text: "Hello"},
		{Key: "sub.deep", Text: "tpl"},
	}, doc.Entries)

	got, ok := doc.Tree.Locate("hello")
	require.True(t, ok)
	assert.Equal(t, span(2, 3, 2, 17), got)
}

func TestParseScript_ModuleExports(t *testing.T) {
	t.Parallel()
	doc, err := Parse("translations.js", []byte(`module.exports = { a: { b: "c" } };`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.b": "c"}, doc.Values())
}

func TestParseScript_Malformed(t *testing.T) {
	t.Parallel()
	_, err := Parse("translations.js", []byte("export default {"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, FormatScript, pe.Format)
}
