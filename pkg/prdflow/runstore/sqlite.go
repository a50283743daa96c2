package runstore

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists runs to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite run store.
// The path should be a file path (e.g., "./runs.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			input_hash TEXT NOT NULL,
			strategy TEXT NOT NULL,
			errors INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			fixes INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			created_at TEXT NOT NULL,
			document BLOB
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_created_at
		ON runs(created_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, source, input_hash, strategy, errors, warnings, fixes, duration_ms, created_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			input_hash = excluded.input_hash,
			strategy = excluded.strategy,
			errors = excluded.errors,
			warnings = excluded.warnings,
			fixes = excluded.fixes,
			duration_ms = excluded.duration_ms,
			created_at = excluded.created_at,
			document = excluded.document
	`, run.ID, run.Source, run.InputHash, run.Strategy, run.Errors, run.Warnings,
		run.Fixes, run.Duration, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Document)

	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var run Run
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, source, input_hash, strategy, errors, warnings, fixes, duration_ms, created_at, document
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Source, &run.InputHash, &run.Strategy, &run.Errors,
		&run.Warnings, &run.Fixes, &run.Duration, &createdAt, &run.Document)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &run, nil
}

// List implements Store.
func (s *SQLiteStore) List(limit int) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, source, input_hash, strategy, errors, warnings, fixes, duration_ms, created_at, LENGTH(COALESCE(document, ''))
		FROM runs
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var createdAt string
		if err := rows.Scan(&info.ID, &info.Source, &info.InputHash, &info.Strategy,
			&info.Errors, &info.Warnings, &info.Fixes, &info.Duration, &createdAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan run info: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
