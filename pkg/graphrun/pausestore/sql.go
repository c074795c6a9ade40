package pausestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// dialect adapts the shared queries to a driver.
type dialect struct {
	name string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// blob column type
	blob string
}

var (
	sqliteDialect   = dialect{name: "sqlite", blob: "BLOB"}
	postgresDialect = dialect{name: "postgres", numbered: true, blob: "BYTEA"}
)

// bind rewrites ? placeholders for drivers that number them.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Repository over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
	closed  bool
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pause_records (
			run_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			workflow_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			data `+s.dialect.blob+` NOT NULL,
			PRIMARY KEY (run_id, sequence)
		)
	`); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *sqlStore) Save(ctx context.Context, rec Record) (Info, error) {
	if err := rec.Validate(); err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Info{}, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Info{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, s.dialect.bind(`
		SELECT COALESCE(MAX(sequence), 0) + 1 FROM pause_records WHERE run_id = ?
	`), rec.RunID).Scan(&seq); err != nil {
		return Info{}, fmt.Errorf("next sequence: %w", err)
	}

	rec, data, err := prepare(rec, seq, time.Now())
	if err != nil {
		return Info{}, err
	}

	if _, err := tx.ExecContext(ctx, s.dialect.bind(`
		INSERT INTO pause_records (run_id, sequence, workflow_id, created_at, data)
		VALUES (?, ?, ?, ?, ?)
	`), rec.RunID, rec.Sequence, rec.WorkflowID, rec.CreatedAt.Format(time.RFC3339Nano), data); err != nil {
		return Info{}, fmt.Errorf("save pause record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Info{}, fmt.Errorf("commit: %w", err)
	}
	return infoOf(rec, len(data)), nil
}

func (s *sqlStore) Load(ctx context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.bind(`
		SELECT data FROM pause_records
		WHERE run_id = ?
		ORDER BY sequence DESC
		LIMIT 1
	`), runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load pause record: %w", err)
	}
	return Unmarshal(data)
}

func (s *sqlStore) List(ctx context.Context, runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.bind(`
		SELECT sequence, workflow_id, created_at, LENGTH(data)
		FROM pause_records
		WHERE run_id = ?
		ORDER BY sequence
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("list pause records: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		info := Info{RunID: runID}
		var createdAt string
		if err := rows.Scan(&info.Sequence, &info.WorkflowID, &createdAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan pause record info: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pause records: %w", err)
	}
	return infos, nil
}

func (s *sqlStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.bind(`
		DELETE FROM pause_records WHERE run_id = ?
	`), runID); err != nil {
		return fmt.Errorf("delete run pause records: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
