package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - initial schema.
const currentSchemaVersion = 1

// Store is the sole owner of persisted flow-graph state. All mutations
// go through its methods; per-line ingestion wraps steps 2-5 of the
// ingestion algorithm in a single transaction.
type Store struct {
	db  *sql.DB
	seq atomic.Int64 // logical clock stamped onto every LogEntry
}

// Open creates or opens a SQLite database at the given path ("" or
// ":memory:" for an in-memory database used by tests).
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention
//   - foreign key enforcement
//
// Open is idempotent - safe to call multiple times against the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection keeps
	// the ingestor's per-line transactions from racing against each other.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.restoreClock(); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore clock: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// nextSeq returns the next logical sequence number stamped onto a
// LogEntry.
func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}

// restoreClock seeds the in-process sequence counter from the highest
// seq already persisted, so a reopened database keeps issuing increasing
// values instead of restarting at zero.
func (s *Store) restoreClock() error {
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(seq) FROM log_entries`).Scan(&max); err != nil {
		return err
	}
	if max.Valid {
		s.seq.Store(max.Int64)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// runMigrations records currentSchemaVersion in user_version. Schema
// version 1 is the only version, so no incremental migration steps run.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
