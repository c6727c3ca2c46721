package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jward/intlsense"
	"github.com/jward/intlsense/internal/position"
	"github.com/jward/intlsense/internal/watch"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Walk the catalogs and record every t() call site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			flagProject = args[0]
		}
		s, err := openSession()
		if err != nil {
			return outputError("index", err)
		}
		defer s.engine.Close()

		stats, err := indexProject(cmd.Context(), s)
		if err != nil {
			return outputError("index", err)
		}
		return outputResult(CLIResult{Command: "index", Results: stats})
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every translation key in first-seen order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return outputError("keys", err)
		}
		defer s.engine.Close()

		res, err := s.engine.WalkCatalogs(cmd.Context(), s.root)
		if err != nil {
			return outputError("keys", err)
		}
		keys := res.Keys
		if keys == nil {
			keys = []string{}
		}
		return outputResult(CLIResult{Command: "keys", Results: keys})
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <key>",
	Short: "Show the translations and usages of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return outputError("lookup", err)
		}
		defer s.engine.Close()

		if _, err := indexProject(cmd.Context(), s); err != nil {
			return outputError("lookup", err)
		}
		entry, err := s.engine.LookupExact(args[0])
		if err != nil {
			return outputError("lookup", err)
		}
		if entry == nil {
			return outputError("lookup", fmt.Errorf("key not found: %s", args[0]))
		}
		return outputResult(CLIResult{Command: "lookup", Results: entryToCLI(entry)})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <file> <line> <col>",
	Short: "Complete the translation key being typed at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args)
		if err != nil {
			return outputError("complete", err)
		}
		s, err := openSession()
		if err != nil {
			return outputError("complete", err)
		}
		defer s.engine.Close()

		content, ok := insertPlaceholder(doc.content, doc.pos)
		if !ok {
			return outputError("complete", fmt.Errorf("position %s is outside %s", doc.pos, doc.path))
		}
		items, err := s.engine.CompleteAt(cmd.Context(), s.root, doc.uri, content, doc.pos)
		if err != nil {
			return outputError("complete", err)
		}
		out := make([]CLICompletion, 0, len(items))
		for _, it := range items {
			out = append(out, completionToCLI(it))
		}
		return outputResult(CLIResult{Command: "complete", Results: out})
	},
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the catalog entries and usages of the key at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args)
		if err != nil {
			return outputError("definition", err)
		}
		s, err := openSession()
		if err != nil {
			return outputError("definition", err)
		}
		defer s.engine.Close()

		if _, err := indexProject(cmd.Context(), s); err != nil {
			return outputError("definition", err)
		}
		locs, err := s.engine.DefinitionAt(cmd.Context(), s.root, doc.uri, doc.content, doc.pos)
		if err != nil {
			return outputError("definition", err)
		}
		out := make([]CLILocation, 0, len(locs))
		for _, l := range locs {
			out = append(out, locationToCLI(l.URI, l.Range))
		}
		return outputResult(CLIResult{Command: "definition", Results: out})
	},
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show the translations of the key at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args)
		if err != nil {
			return outputError("hover", err)
		}
		s, err := openSession()
		if err != nil {
			return outputError("hover", err)
		}
		defer s.engine.Close()

		h, err := s.engine.Hover(cmd.Context(), s.root, doc.uri, doc.content, doc.pos)
		if err != nil {
			return outputError("hover", err)
		}
		if h == nil {
			return outputResult(CLIResult{Command: "hover"})
		}
		return outputResult(CLIResult{Command: "hover", Results: CLIHover{
			Contents: h.Contents,
			At:       locationToCLI(doc.uri, h.Range),
		}})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the project and keep usages current until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.engine.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats, err := indexProject(ctx, s)
		if err != nil {
			return err
		}
		logger.Info().
			Str("root", s.root).
			Int("catalogs", stats.Catalogs).
			Int("keys", stats.Keys).
			Int("usages", stats.Usages).
			Msg("Watching project")

		w, err := watch.New(s.root, s.engine, watch.WithIgnore(s.cfg.WatchIgnore), watch.WithLogger(logger))
		if err != nil {
			return err
		}
		defer w.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s.engine.Run(ctx) })
		g.Go(func() error { return w.Run(ctx) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info().Msg("Stopped watching")
		return nil
	},
}

// --- Helpers ---

// indexProject walks the catalogs under the session root and records the
// usages of every template and script.
func indexProject(ctx context.Context, s *session) (CLIStats, error) {
	start := time.Now()
	res, err := s.engine.WalkCatalogs(ctx, s.root)
	if err != nil {
		return CLIStats{}, fmt.Errorf("walking catalogs: %w", err)
	}
	stats, err := s.engine.IndexDirectory(ctx, s.root)
	if err != nil {
		return CLIStats{}, fmt.Errorf("indexing: %w", err)
	}
	return CLIStats{
		Root:       s.root,
		Files:      stats.Files,
		Unchanged:  stats.Unchanged,
		Failed:     stats.Failed,
		Usages:     stats.Usages,
		Catalogs:   len(res.Files),
		Keys:       len(res.Keys),
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// document is a file argument read from disk with a position inside it.
type document struct {
	path    string
	uri     string
	content []byte
	pos     intlsense.Position
}

// readDocument parses <file> <line> <col> arguments and reads the file.
func readDocument(args []string) (*document, error) {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return nil, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &document{
		path:    path,
		uri:     position.FileURI(path),
		content: content,
		pos:     intlsense.Position{Line: line, Character: col},
	}, nil
}

// insertPlaceholder returns content with the completion placeholder inserted
// at pos, the way an editor marks the caret before completing.
func insertPlaceholder(content []byte, pos intlsense.Position) ([]byte, bool) {
	off, ok := position.NewLineIndex(content).Offset(pos)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(content)+len(intlsense.Placeholder))
	out = append(out, content[:off]...)
	out = append(out, intlsense.Placeholder...)
	out = append(out, content[off:]...)
	return out, true
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
