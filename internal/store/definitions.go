package store

import (
	"database/sql"
	"fmt"
)

// --- Catalog file operations ---

const catalogFileCols = `id, root, path, locale, format, hash, last_indexed`

func scanCatalogFile(scanner interface{ Scan(...any) error }) (*CatalogFile, error) {
	f := &CatalogFile{}
	if err := scanner.Scan(&f.ID, &f.Root, &f.Path, &f.Locale, &f.Format, &f.Hash, &f.LastIndexed); err != nil {
		return nil, err
	}
	return f, nil
}

// CatalogFileByPath returns the cached catalog file for path, or nil when the
// file has never been indexed.
func (s *Store) CatalogFileByPath(path string) (*CatalogFile, error) {
	f, err := scanCatalogFile(s.db.QueryRow(
		"SELECT "+catalogFileCols+" FROM catalog_files WHERE path = ?", path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog file by path: %w", err)
	}
	return f, nil
}

func (s *Store) CatalogFilesByRoot(root string) ([]*CatalogFile, error) {
	rows, err := s.db.Query(
		"SELECT "+catalogFileCols+" FROM catalog_files WHERE root = ? ORDER BY path", root,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog files by root: %w", err)
	}
	defer rows.Close()
	var files []*CatalogFile
	for rows.Next() {
		f, err := scanCatalogFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ReplaceCatalogFile stores f and its definitions in one transaction,
// replacing whatever was cached for the same path. f.ID is set on return.
func (s *Store) ReplaceCatalogFile(f *CatalogFile, defs []*Definition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace catalog file: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM catalog_files WHERE path = ?", f.Path).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			"INSERT INTO catalog_files (root, path, locale, format, hash, last_indexed) VALUES (?, ?, ?, ?, ?, ?)",
			f.Root, f.Path, f.Locale, f.Format, f.Hash, f.LastIndexed,
		)
		if err != nil {
			return fmt.Errorf("insert catalog file: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("query catalog file: %w", err)
	default:
		if _, err := tx.Exec(
			"UPDATE catalog_files SET root = ?, locale = ?, format = ?, hash = ?, last_indexed = ? WHERE id = ?",
			f.Root, f.Locale, f.Format, f.Hash, f.LastIndexed, id,
		); err != nil {
			return fmt.Errorf("update catalog file: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM definitions WHERE file_id = ?", id); err != nil {
			return fmt.Errorf("delete definitions: %w", err)
		}
	}

	stmt, err := tx.Prepare(
		`INSERT INTO definitions (file_id, key, ordinal, text, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare definition insert: %w", err)
	}
	defer stmt.Close()
	for i, d := range defs {
		res, err := stmt.Exec(id, d.Key, i, d.Text, d.StartLine, d.StartCol, d.EndLine, d.EndCol)
		if err != nil {
			return fmt.Errorf("insert definition %q: %w", d.Key, err)
		}
		d.FileID = id
		d.Ordinal = i
		if d.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace catalog file: commit: %w", err)
	}
	f.ID = id
	return nil
}

// DeleteCatalogFilesNotIn evicts the catalog files under root whose paths are
// not in keep, along with their definitions. It returns the number of files
// evicted.
func (s *Store) DeleteCatalogFilesNotIn(root string, keep []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("evict catalog files: begin: %w", err)
	}
	defer tx.Rollback()

	where := "root = ?"
	args := []any{root}
	if len(keep) > 0 {
		where += " AND path NOT IN (" + placeholderList(len(keep)) + ")"
		args = append(args, stringsToArgs(keep)...)
	}

	if _, err := tx.Exec(
		"DELETE FROM definitions WHERE file_id IN (SELECT id FROM catalog_files WHERE "+where+")", args...,
	); err != nil {
		return 0, fmt.Errorf("evict definitions: %w", err)
	}
	res, err := tx.Exec("DELETE FROM catalog_files WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("evict catalog files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, tx.Commit()
}

// --- Definition queries ---

const definitionCols = `d.id, d.file_id, d.key, d.ordinal, d.text,
	d.start_line, d.start_col, d.end_line, d.end_col, f.path, f.locale`

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(
			&d.ID, &d.FileID, &d.Key, &d.Ordinal, &d.Text,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol, &d.Path, &d.Locale,
		); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// DefinitionsByFile returns a catalog file's definitions in source order.
func (s *Store) DefinitionsByFile(fileID int64) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+definitionCols+" FROM definitions d JOIN catalog_files f ON f.id = d.file_id WHERE d.file_id = ? ORDER BY d.ordinal",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions by file: %w", err)
	}
	return defs, nil
}

// DefinitionsByKey returns every cached definition of key, ordered by catalog
// path.
func (s *Store) DefinitionsByKey(key string) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+definitionCols+" FROM definitions d JOIN catalog_files f ON f.id = d.file_id WHERE d.key = ? ORDER BY f.path, d.ordinal",
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions by key: %w", err)
	}
	return defs, nil
}

// Keys returns every key that has a definition or a usage, sorted.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM definitions UNION SELECT key FROM usages ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
