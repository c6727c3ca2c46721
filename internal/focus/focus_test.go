package focus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/usage"
)

func at(line, char int) position.Position {
	return position.Position{Line: line, Character: char}
}

func TestLocate_Template(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := []byte(`{{t "rootFileTranslation"}}`)

	f, err := Locate(ctx, "file:///p/app/templates/a.hbs", src, at(0, 8))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, usage.KindTemplate, f.Kind)
	assert.Equal(t, "rootFileTranslation", f.Value)
	assert.Equal(t, position.Range{Start: at(0, 4), End: at(0, 25)}, f.Range)
	assert.Equal(t, -1, f.PropertyColumn)

	f, err = Locate(ctx, "a.hbs", src, at(0, 1))
	require.NoError(t, err)
	assert.Nil(t, f, "cursor on the mustache itself")
}

func TestLocate_TemplateShapes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
		pos  position.Position
		want string
	}{
		{"sub-expression", `{{concat (t "k")}}`, at(0, 14), "k"},
		{"second param", `{{t "a" "b"}}`, at(0, 9), "b"},
		{"other helper", `{{foo "x"}}`, at(0, 7), ""},
		{"hash value", `{{t "a" d="x"}}`, at(0, 11), ""},
		{"this-relative", `{{this.t "x"}}`, at(0, 11), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := Locate(ctx, "a.hbs", []byte(tt.src), tt.pos)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestLocate_TemplateParseError(t *testing.T) {
	t.Parallel()
	_, err := Locate(context.Background(), "a.hbs", []byte(`{{t "a"`), at(0, 5))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestLocate_Script(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := []byte("this.intl.t('subFolderTranslation.another');\n")

	f, err := Locate(ctx, "app/components/x.js", src, at(0, 15))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, usage.KindScript, f.Kind)
	assert.Equal(t, "subFolderTranslation.another", f.Value)
	assert.Equal(t, 10, f.PropertyColumn)
	assert.Equal(t, position.Range{Start: at(0, 12), End: at(0, 42)}, f.Range)

	f, err = Locate(ctx, "app/components/x.js", src, at(0, 42))
	require.NoError(t, err)
	require.NotNil(t, f, "cursor after the closing quote")
	assert.Equal(t, "subFolderTranslation.another", f.Value)

	f, err = Locate(ctx, "app/components/x.js", src, at(0, 6))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLocate_ScriptSecondArgument(t *testing.T) {
	t.Parallel()
	f, err := Locate(context.Background(), "x.ts", []byte("this.intl.t('a', 'b');"), at(0, 18))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLocate_UnsupportedFile(t *testing.T) {
	t.Parallel()
	f, err := Locate(context.Background(), "x.txt", []byte("t('a')"), at(0, 3))
	require.NoError(t, err)
	assert.Nil(t, f)
}
