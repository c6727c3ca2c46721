package store

import "time"

// Catalog domain types

type CatalogFile struct {
	ID          int64
	Root        string
	Path        string
	Locale      string
	Format      string
	Hash        string
	LastIndexed time.Time
}

// Definition is one flattened catalog entry. Path and Locale are filled from
// the owning catalog file on reads.
type Definition struct {
	ID        int64
	FileID    int64
	Key       string
	Ordinal   int
	Text      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int

	Path   string
	Locale string
}

// Usage domain types

type SourceFile struct {
	ID          int64
	Path        string
	URI         string
	Kind        string
	Hash        string
	LastIndexed time.Time
}

// Usage is one occurrence of a key literal in a source file. Path and URI
// are filled from the owning source file on reads.
type Usage struct {
	ID        int64
	FileID    int64
	Key       string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int

	Path string
	URI  string
}
