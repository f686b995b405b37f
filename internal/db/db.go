// Package db provides SQLite storage for skillchat.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/andertben/skillspot-chat/internal/logging"
)

// Config configures the database connection.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string

	// BusyTimeoutMs is how long SQLite waits on a locked database.
	BusyTimeoutMs int
}

// DefaultConfig returns defaults for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, BusyTimeoutMs: 5000}
}

// DB wraps a SQLite connection pool.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (creating if needed) the database and applies the schema.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	busy := cfg.BusyTimeoutMs
	if busy <= 0 {
		busy = 5000
	}

	var dsn string
	if cfg.Path == ":memory:" {
		dsn = fmt.Sprintf("file::memory:?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", busy)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", cfg.Path, busy)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: cfg.Path, logger: logging.Component("db")}
	if err := db.ensureSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	db.logger.Debug().Str("path", cfg.Path).Msg("database opened")
	return db, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory(ctx context.Context) (*DB, error) {
	return Open(ctx, Config{Path: ":memory:"})
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database. Closing a nil DB is a no-op.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Transaction runs fn inside a transaction, committing on nil error.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			thread_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
