package store

import (
	"database/sql"
	"fmt"
)

// --- Source file operations ---

func (s *Store) SourceFileByPath(path string) (*SourceFile, error) {
	f := &SourceFile{}
	var hash sql.NullString
	var indexed sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, path, uri, kind, hash, last_indexed FROM source_files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.URI, &f.Kind, &hash, &indexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source file by path: %w", err)
	}
	f.Hash = hash.String
	f.LastIndexed = indexed.Time
	return f, nil
}

// ReplaceUsages stores f and replaces all of its usages in one transaction,
// so readers see either the previous or the new usage set. f.ID is set on
// return.
func (s *Store) ReplaceUsages(f *SourceFile, usages []*Usage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace usages: begin: %w", err)
	}
	defer tx.Rollback()

	if err := replaceUsagesTx(tx, f, usages); err != nil {
		return fmt.Errorf("replace usages %s: %w", f.Path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace usages: commit: %w", err)
	}
	return nil
}

func replaceUsagesTx(tx *sql.Tx, f *SourceFile, usages []*Usage) error {
	var id int64
	err := tx.QueryRow("SELECT id FROM source_files WHERE path = ?", f.Path).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			"INSERT INTO source_files (path, uri, kind, hash, last_indexed) VALUES (?, ?, ?, ?, ?)",
			f.Path, f.URI, f.Kind, f.Hash, f.LastIndexed,
		)
		if err != nil {
			return fmt.Errorf("insert source file: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("query source file: %w", err)
	default:
		if _, err := tx.Exec(
			"UPDATE source_files SET uri = ?, kind = ?, hash = ?, last_indexed = ? WHERE id = ?",
			f.URI, f.Kind, f.Hash, f.LastIndexed, id,
		); err != nil {
			return fmt.Errorf("update source file: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM usages WHERE file_id = ?", id); err != nil {
			return fmt.Errorf("delete usages: %w", err)
		}
	}
	f.ID = id

	stmt, err := tx.Prepare(
		"INSERT INTO usages (file_id, key, start_line, start_col, end_line, end_col) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare usage insert: %w", err)
	}
	defer stmt.Close()
	for _, u := range usages {
		res, err := stmt.Exec(id, u.Key, u.StartLine, u.StartCol, u.EndLine, u.EndCol)
		if err != nil {
			return fmt.Errorf("insert usage %q: %w", u.Key, err)
		}
		u.FileID = id
		if u.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return nil
}

// --- Usage queries ---

const usageCols = `u.id, u.file_id, u.key, u.start_line, u.start_col, u.end_line, u.end_col, f.path, f.uri`

func (s *Store) queryUsages(query string, args ...any) ([]*Usage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var usages []*Usage
	for rows.Next() {
		u := &Usage{}
		if err := rows.Scan(
			&u.ID, &u.FileID, &u.Key, &u.StartLine, &u.StartCol, &u.EndLine, &u.EndCol, &u.Path, &u.URI,
		); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// UsagesByKey returns every recorded usage of key ordered by file and
// position.
func (s *Store) UsagesByKey(key string) ([]*Usage, error) {
	usages, err := s.queryUsages(
		"SELECT "+usageCols+" FROM usages u JOIN source_files f ON f.id = u.file_id WHERE u.key = ? ORDER BY f.path, u.start_line, u.start_col",
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("usages by key: %w", err)
	}
	return usages, nil
}

func (s *Store) UsagesByFile(fileID int64) ([]*Usage, error) {
	usages, err := s.queryUsages(
		"SELECT "+usageCols+" FROM usages u JOIN source_files f ON f.id = u.file_id WHERE u.file_id = ? ORDER BY u.start_line, u.start_col",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("usages by file: %w", err)
	}
	return usages, nil
}
