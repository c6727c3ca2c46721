package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the SQLite data access layer for the translation index: catalog
// files with their definitions, and source files with their usages.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath. MemoryPath keeps the index in
// memory for the lifetime of the Store.
//
// The pool is pinned to one connection: an in-memory database lives and dies
// with its connection, and a single connection serializes writers.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=ON&_busy_timeout=30000"
	if dbPath != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ranges are stored zero-based, as handed to editors.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS catalog_files (
  id              INTEGER PRIMARY KEY,
  root            TEXT NOT NULL,
  path            TEXT NOT NULL UNIQUE,
  locale          TEXT NOT NULL,
  format          TEXT NOT NULL,
  hash            TEXT NOT NULL,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS definitions (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES catalog_files(id) ON DELETE CASCADE,
  key             TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  text            TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS source_files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  uri             TEXT NOT NULL,
  kind            TEXT NOT NULL,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS usages (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES source_files(id) ON DELETE CASCADE,
  key             TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_catalog_files_root ON catalog_files(root);
CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_id);
CREATE INDEX IF NOT EXISTS idx_definitions_key ON definitions(key);
CREATE INDEX IF NOT EXISTS idx_usages_file ON usages(file_id);
CREATE INDEX IF NOT EXISTS idx_usages_key ON usages(key);
`

// DeleteSourceFile transactionally removes a source file and all of its
// usages. Deleting an unknown path is a no-op.
func (s *Store) DeleteSourceFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM source_files WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query source file: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM usages WHERE file_id = ?",
		"DELETE FROM source_files WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete source file data: %w", err)
		}
	}
	return tx.Commit()
}
