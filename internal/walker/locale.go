package walker

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Only two-letter (ISO 639-1) primary subtags count. Three-letter codes
// collide with ordinary catalog names such as "app", "nav" or "day".
var localeShape = regexp.MustCompile(`^[A-Za-z]{2}([-_][A-Za-z0-9]{2,8})*$`)

// IsLocaleTag reports whether name is a known BCP 47 language tag with a
// two-letter primary language, such as "en", "en-us" or "pt_BR".
func IsLocaleTag(name string) bool {
	if !localeShape.MatchString(name) {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
	return err == nil
}

// FileLocale derives the locale of a catalog file. A base name that is a
// locale tag names its own locale; otherwise the nearest enclosing locale
// directory applies, falling back to the base name itself.
func FileLocale(name, dirLocale string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if IsLocaleTag(base) || dirLocale == "" {
		return base
	}
	return dirLocale
}
