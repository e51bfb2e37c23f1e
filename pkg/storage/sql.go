package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLBackend is a database/sql backed store for the durable area.
// It works with any database/sql compatible driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema:
//
//	CREATE TABLE dux_state (
//	    key VARCHAR(255) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//
// CreateTable creates it for the configured dialect.
type SQLBackend struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	ownsDB    bool

	mu     sync.RWMutex
	closed bool
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

// SQLOption configures SQLBackend behavior.
type SQLOption func(*sqlConfig)

type sqlConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name for state storage.
// Default: "dux_state".
func WithSQLTableName(name string) SQLOption {
	return func(c *sqlConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLOption {
	return func(c *sqlConfig) {
		c.dialect = dialect
	}
}

// NewSQLBackend creates a backend on an existing connection pool. Close does
// not close db.
func NewSQLBackend(db *sql.DB, opts ...SQLOption) *SQLBackend {
	cfg := &sqlConfig{
		tableName: "dux_state",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLBackend{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// OpenSQLite opens (creating if needed) a sqlite database file with the
// pure-Go modernc driver and prepares the state table. The returned backend
// owns the connection and closes it on Close.
func OpenSQLite(path string, opts ...SQLOption) (*SQLBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	opts = append(opts, WithSQLDialect(DialectSQLite))
	b := NewSQLBackend(db, opts...)
	b.ownsDB = true

	if err := b.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLBackend) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

func (s *SQLBackend) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save stores data under key.
func (s *SQLBackend) Save(ctx context.Context, key string, data []byte) error {
	if s.isClosed() {
		return errClosed()
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (key, data, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (`+"`key`"+`, data, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				data = VALUES(data),
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (key, data, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, key, data)
	return err
}

// Load retrieves the data stored under key.
func (s *SQLBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, errClosed()
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = %s`,
		s.tableName, s.keyColumn(), s.placeholder(1))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return data, nil
}

// Delete removes key from the table.
func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return errClosed()
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`,
		s.tableName, s.keyColumn(), s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Keys lists the stored keys.
func (s *SQLBackend) Keys(ctx context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, errClosed()
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, s.keyColumn(), s.tableName, s.keyColumn())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close marks the backend closed. The connection pool is closed only when
// the backend was created by OpenSQLite.
func (s *SQLBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// keyColumn quotes the key column where the dialect reserves the word.
func (s *SQLBackend) keyColumn() string {
	if s.dialect == DialectMySQL {
		return "`key`"
	}
	return "key"
}

// CreateTable creates the state table if it doesn't exist.
// This is a convenience method for development/testing.
func (s *SQLBackend) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key VARCHAR(255) PRIMARY KEY,
				data BYTEA NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				`+"`key`"+` VARCHAR(255) PRIMARY KEY,
				data BLOB NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query)
	return err
}
