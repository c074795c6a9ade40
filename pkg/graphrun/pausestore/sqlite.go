package pausestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps pause records in a SQLite database file. Writers on
// the same file wait up to five seconds for each other.
type SQLiteStore struct {
	*sqlStore
}

var _ Repository = (*SQLiteStore)(nil)

// sqliteDSN turns a path into a modernc DSN with the pragmas every
// connection needs. ":memory:" is passed through; it lives and dies with
// its single connection.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// NewSQLiteStore opens or creates the database at path and its table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(context.Background(), db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
