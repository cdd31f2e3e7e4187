// Package store provides database access for chatarchive.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotInitialized is returned when the database has no messages table.
var ErrNotInitialized = errors.New("database not initialized: run 'chatarchive init-db' or 'chatarchive import'")

// Store provides database operations for chatarchive.
type Store struct {
	db       *sql.DB
	dbPath   string
	readOnly bool
}

const (
	defaultSQLiteParams  = "?_journal_mode=WAL&_busy_timeout=5000"
	readOnlySQLiteParams = "?mode=ro&_query_only=true&_busy_timeout=5000"
)

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	return isSQLiteError(err, "UNIQUE constraint failed")
}

// Open opens or creates the database at the given path for writing.
// Only the offline commands (import, tag, stoppers) open the store this way.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// OpenReadOnly opens an existing database in read-only mode. The file must
// already exist; nothing is created and no journal is written.
func OpenReadOnly(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+readOnlySQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, readOnly: true}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for the query layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// ReadOnly reports whether the store was opened with OpenReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InitSchema creates the messages table and its indexes if they don't
// exist, then applies column migrations for databases created by older
// versions.
func (s *Store) InitSchema() error {
	if s.readOnly {
		return fmt.Errorf("init schema: database opened read-only")
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("execute schema.sql: %w", err)
	}

	if _, err := s.EnsureTagsColumn(); err != nil {
		return err
	}
	return nil
}

// EnsureTagsColumn adds the tags column when it is missing.
// It reports whether the column had to be added.
func (s *Store) EnsureTagsColumn() (bool, error) {
	has, err := s.HasColumn("messages", "tags")
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if _, err := s.db.Exec(`ALTER TABLE messages ADD COLUMN tags TEXT DEFAULT ''`); err != nil {
		return false, fmt.Errorf("add tags column: %w", err)
	}
	return true, nil
}

// HasColumn reports whether table has the named column.
func (s *Store) HasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}

// CheckReady verifies that the messages table exists. Servers call this at
// startup so a missing import surfaces as ErrNotInitialized instead of a
// failure on the first request.
func (s *Store) CheckReady() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='messages'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if n == 0 {
		return ErrNotInitialized
	}
	return nil
}

// Stats holds database statistics.
type Stats struct {
	MessageCount   int64
	UserCount      int64
	TopicCount     int64
	TaggedCount    int64
	EarliestMillis int64
	LatestMillis   int64
	DatabaseSize   int64
}

// GetStats returns statistics about the database.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT creator_email),
			COUNT(DISTINCT topic_id),
			COALESCE(MIN(created_timestamp), 0),
			COALESCE(MAX(created_timestamp), 0)
		FROM messages
	`).Scan(&stats.MessageCount, &stats.UserCount, &stats.TopicCount, &stats.EarliestMillis, &stats.LatestMillis)
	if err != nil {
		if isSQLiteError(err, "no such table") {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE tags IS NOT NULL AND tags != ''`).Scan(&stats.TaggedCount)
	if err != nil && !isSQLiteError(err, "no such column") {
		return nil, fmt.Errorf("count tagged: %w", err)
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}

// Vacuum rebuilds the database file to reclaim free pages.
func (s *Store) Vacuum() error {
	if s.readOnly {
		return fmt.Errorf("vacuum: database opened read-only")
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
