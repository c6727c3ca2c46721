package store

import "sync"

// BatchedStore buffers per-file usage replacements in memory so extraction
// workers can run in parallel without contending for the single SQLite
// connection. CommitBatch writes everything in one transaction.
//
// Thread safety: the mutex protects the buffered slice. A later replacement
// for the same path supersedes an earlier one.
type BatchedStore struct {
	mu      sync.Mutex
	files   []*SourceFile
	usages  map[string][]*Usage
	indexOf map[string]int
}

// Compile-time check: *BatchedStore satisfies UsageWriter.
var _ UsageWriter = (*BatchedStore)(nil)

func NewBatchedStore() *BatchedStore {
	return &BatchedStore{
		usages:  make(map[string][]*Usage),
		indexOf: make(map[string]int),
	}
}

func (b *BatchedStore) ReplaceUsages(f *SourceFile, usages []*Usage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.indexOf[f.Path]; ok {
		b.files[i] = f
	} else {
		b.indexOf[f.Path] = len(b.files)
		b.files = append(b.files, f)
	}
	b.usages[f.Path] = usages
	return nil
}

// Len returns the number of buffered files.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

// UsageCount returns the number of buffered usages across all files.
func (b *BatchedStore) UsageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, u := range b.usages {
		n += len(u)
	}
	return n
}
