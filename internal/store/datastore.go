package store

// UsageWriter receives the usages extracted from one source file. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type UsageWriter interface {
	ReplaceUsages(f *SourceFile, usages []*Usage) error
}

// Compile-time check: *Store satisfies UsageWriter.
var _ UsageWriter = (*Store)(nil)
