package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists revisions to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a SQLite snapshot store.
// The path should be a file path (e.g., "./graphs.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS documents (
			document TEXT PRIMARY KEY,
			next_revision INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			document TEXT NOT NULL,
			revision INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (document, revision)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_document ON revisions(document)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(document string, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRow(`
		INSERT INTO documents (document, next_revision) VALUES (?, 1)
		ON CONFLICT(document) DO UPDATE SET next_revision = next_revision + 1
		RETURNING next_revision
	`, document).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("allocate revision: %w", err)
	}

	if data == nil {
		data = []byte{}
	}
	if _, err := tx.Exec(`
		INSERT INTO revisions (document, revision, timestamp, data)
		VALUES (?, ?, ?, ?)
	`, document, rev, time.Now().UTC().Format(time.RFC3339Nano), data); err != nil {
		return 0, fmt.Errorf("save revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return rev, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(document string, revision int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM revisions
		WHERE document = ? AND revision = ?
	`, document, revision).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load revision: %w", err)
	}
	return data, nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(document string) ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, ErrStoreClosed
	}

	var (
		data []byte
		rev  int64
	)
	err := s.db.QueryRow(`
		SELECT data, revision FROM revisions
		WHERE document = ?
		ORDER BY revision DESC
		LIMIT 1
	`, document).Scan(&data, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load latest revision: %w", err)
	}
	return data, rev, nil
}

// List implements Store.
func (s *SQLiteStore) List(document string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT revision, timestamp, LENGTH(data)
		FROM revisions
		WHERE document = ?
		ORDER BY revision
	`, document)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		info := Info{Document: document}
		var timestamp string
		if err := rows.Scan(&info.Revision, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan revision info: %w", err)
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(document string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`
		DELETE FROM revisions WHERE document = ? AND revision = ?
	`, document, revision); err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	return nil
}

// DeleteDocument implements Store. The revision counter is kept, so a
// recreated document does not reuse revision numbers.
func (s *SQLiteStore) DeleteDocument(document string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM revisions WHERE document = ?`, document); err != nil {
		return fmt.Errorf("delete document: %w", err)
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
