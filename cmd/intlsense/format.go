package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatKeysText prints one key per line.
func formatKeysText(w io.Writer, keys []string) {
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
}

// formatEntryText formats a CLIEntry as translation columns followed by its
// usages.
func formatEntryText(w io.Writer, e CLIEntry) {
	fmt.Fprintf(w, "Key: %s\n", e.Key)
	fmt.Fprintln(w)

	if len(e.Translations) > 0 {
		fmt.Fprintln(w, "Translations:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, tr := range e.Translations {
			fmt.Fprintf(tw, "  %s\t%s\t%s:%d:%d\n", tr.Locale, tr.Text, tr.At.File, tr.At.StartLine, tr.At.StartCol)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(e.Usages) > 0 {
		fmt.Fprintln(w, "Usages:")
		for _, u := range e.Usages {
			fmt.Fprintf(w, "  %s:%d:%d\n", u.File, u.StartLine, u.StartCol)
		}
	}
}

// formatCompletionsText formats CLICompletion results as aligned columns.
// Only the first detail line is shown.
func formatCompletionsText(w io.Writer, items []CLICompletion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tINSERT\tDETAIL")
	for _, it := range items {
		detail, _, _ := strings.Cut(it.Detail, "\n")
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Label, it.Insert, detail)
	}
	tw.Flush()
}

// formatHoverText prints the hover contents.
func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintln(w, h.Contents)
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, s CLIStats) {
	fmt.Fprintf(w, "Indexed %s in %dms\n", s.Root, s.DurationMS)
	fmt.Fprintf(w, "Catalogs: %d (%d keys)\n", s.Catalogs, s.Keys)
	fmt.Fprintf(w, "Sources: %d (%d unchanged, %d failed)\n", s.Files, s.Unchanged, s.Failed)
	fmt.Fprintf(w, "Usages: %d\n", s.Usages)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []string:
		formatKeysText(w, v)
	case CLIEntry:
		formatEntryText(w, v)
	case []CLICompletion:
		formatCompletionsText(w, v)
	case CLIHover:
		formatHoverText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case nil:
		// No output for nil results (e.g., hover with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
