package intlsense

import "github.com/jward/intlsense/internal/usage"

const (
	// Helper is the translation helper name in templates and the property
	// name of the translation call in scripts.
	Helper = usage.Helper

	// Placeholder is the marker an editor inserts at the caret inside the
	// literal being completed.
	Placeholder = "ELSCompletionDummy"

	// IntlAddon is the package that ships its own translation provider.
	// Projects depending on it get no results unless configured otherwise.
	IntlAddon = "els-intl-addon"
)
