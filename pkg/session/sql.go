package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// SQLStorage is a SQL-backed Storage.
// It works with any database/sql driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema:
//
//	CREATE TABLE storefront_storage (
//	    entry_key  VARCHAR(128) PRIMARY KEY,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// CreateTable creates it.
type SQLStorage struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	ownsDB    bool
	closed    atomic.Bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLStorageOption configures SQLStorage behavior.
type SQLStorageOption func(*sqlStorageConfig)

type sqlStorageConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name.
// Default: "storefront_storage".
func WithSQLTableName(name string) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.dialect = dialect
	}
}

// NewSQLStorage creates a storage on an existing database handle.
// The handle is not closed by Close.
func NewSQLStorage(db *sql.DB, opts ...SQLStorageOption) *SQLStorage {
	cfg := &sqlStorageConfig{
		tableName: "storefront_storage",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLStorage{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// OpenSQLite opens (or creates) a SQLite database file and its table.
// The returned storage owns the handle and closes it on Close.
func OpenSQLite(ctx context.Context, path string, opts ...SQLStorageOption) (*SQLStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: ping sqlite db: %w", err)
	}

	s := NewSQLStorage(db, append([]SQLStorageOption{WithSQLDialect(DialectSQLite)}, opts...)...)
	s.ownsDB = true
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// CreateTable creates the storage table if it does not exist.
func (s *SQLStorage) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			entry_key VARCHAR(128) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("session: create table %s: %w", s.tableName, err)
	}
	return nil
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStorage) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

func (s *SQLStorage) upsertQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return fmt.Sprintf(`
			INSERT INTO %s (entry_key, value, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				value = VALUES(value),
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		return fmt.Sprintf(`
			INSERT INTO %s (entry_key, value, updated_at)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT (entry_key) DO UPDATE SET
				value = excluded.value,
				updated_at = datetime('now')
		`, s.tableName)
	default:
		return fmt.Sprintf(`
			INSERT INTO %s (entry_key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (entry_key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = NOW()
		`, s.tableName)
	}
}

// Get returns the value for key.
func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrStorageClosed{}
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE entry_key = %s`,
		s.tableName, s.placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrStorageClosed{}
	}
	_, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value)
	return err
}

// Remove deletes key.
func (s *SQLStorage) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStorageClosed{}
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE entry_key = %s`,
		s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// SetMany writes all entries in one transaction.
func (s *SQLStorage) SetMany(ctx context.Context, entries map[string]string) error {
	if s.closed.Load() {
		return ErrStorageClosed{}
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range entries {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RemoveMany deletes all keys in one transaction.
func (s *SQLStorage) RemoveMany(ctx context.Context, keys ...string) error {
	if s.closed.Load() {
		return ErrStorageClosed{}
	}
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`DELETE FROM %s WHERE entry_key = %s`,
		s.tableName, s.placeholder(1))
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, query, k); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close marks the storage closed.
// The database handle is closed only when it was opened by OpenSQLite.
func (s *SQLStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
