package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

// SQLiteStore keeps entries in a SQLite table. One connection serializes
// writers; WAL lets other processes read while it writes.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path. An empty path
// gives an in-memory database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS logs (
		seq            INTEGER PRIMARY KEY AUTOINCREMENT,
		id             TEXT NOT NULL UNIQUE,
		query          TEXT NOT NULL,
		requesting_ip  TEXT NOT NULL,
		execution_time REAL NOT NULL,
		timestamp      TEXT NOT NULL,
		status         TEXT NOT NULL,
		error          TEXT NOT NULL DEFAULT ''
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Create inserts e.
func (s *SQLiteStore) Create(ctx context.Context, e *Entry) error {
	if !e.Completed() {
		return ErrEntryIncomplete
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (id, query, requesting_ip, execution_time, timestamp, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Query, e.RequestingIP, e.ExecutionTime,
		e.Timestamp.UTC().Format(time.RFC3339Nano), string(e.Status), e.Error)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// ReadAll returns every entry in insertion order.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, requesting_ip, execution_time, timestamp, status, error
		 FROM logs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			ts     string
			status string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.RequestingIP, &e.ExecutionTime, &ts, &status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Status = Status(status)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp for log %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read logs: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
