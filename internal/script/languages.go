package script

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	JavaScript = "javascript"
	TypeScript = "typescript"
)

// scriptExts lists the extensions of the script modules an Ember app may
// call t() from. TSX is not included: the typescript grammar rejects JSX.
var scriptExts = map[string]string{
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
}

// Grammars are built once, on the first parse.
var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

func grammar(lang string) (*sitter.Language, bool) {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			JavaScript: javascript.GetLanguage(),
			TypeScript: ts.GetLanguage(),
		}
	})
	g, ok := grammars[lang]
	return g, ok
}

// LanguageForFile returns JavaScript or TypeScript for a script path or URI,
// judged by its extension.
func LanguageForFile(path string) (string, bool) {
	lang, ok := scriptExts[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}
