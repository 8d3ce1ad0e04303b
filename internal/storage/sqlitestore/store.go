// Package sqlitestore implements the KV+BLOB store (SPEC_FULL.md §4.1) and
// the tri-state repository (§4.4) on top of modernc.org/sqlite.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tracerun/coreruntime/internal/storage/migrationlock"
)

// Store wraps a single autocommit SQLite connection configured in
// WAL-style journaling mode, per the teacher's NewSQLiteOperationalDB
// pattern generalized to the tri-state schema.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path, acquires the
// migration lock for the duration of schema evolution, and runs Migrate.
// strict controls MigrationSignatureMismatch handling (see schema.go).
func Open(path string, strict bool) (*Store, error) {
	lock := migrationlock.New(path)
	release, err := lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer release()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single autocommit connection: SQLite's own writer serialization is
	// the only concurrency control the store relies on (SPEC_FULL.md §5).
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := Migrate(db, strict); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
