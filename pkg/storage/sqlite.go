package storage

import (
	"database/sql"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// SQLiteBackend is the embedded relational backend, offered alongside
// BoltBackend for deployments that want SQL tooling over the region/point
// store. It shares its schema and query logic with PostgresBackend and
// MySQLBackend through sqlBackend (sql.go); only the driver and dialect
// differ.
type SQLiteBackend struct {
	*sqlBackend
}

// NewSQLiteBackend opens (creating if absent) a SQLite database file at
// path, with its payload tree alongside it at <dir(path)>/data.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "open sqlite database %s", path)
	}
	base, err := newSQLBackend(db, sqliteDialect, filepath.Join(filepath.Dir(path), "data"))
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{sqlBackend: base}, nil
}
