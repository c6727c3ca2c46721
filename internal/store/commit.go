package store

import "fmt"

// CommitBatch replaces the usages of every buffered file within a single
// transaction, in the order the files were first buffered. The batch is
// emptied on success.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, f := range batch.files {
		if err := replaceUsagesTx(tx, f, batch.usages[f.Path]); err != nil {
			return fmt.Errorf("commit batch: %s: %w", f.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}

	batch.files = nil
	batch.usages = make(map[string][]*Usage)
	batch.indexOf = make(map[string]int)
	return nil
}
