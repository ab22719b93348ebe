// Package storage provides persistent swap storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides persistent storage for the swap coordinator.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens the SQLite database at dbPath, creating the file and its
// parent directory if needed.
func New(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Swaps table: one row per coordinated swap.
	-- The vault private key is never stored; only the salt needed to
	-- re-derive it from the master key.
	CREATE TABLE IF NOT EXISTS swaps (
		id TEXT PRIMARY KEY,
		chain_id INTEGER NOT NULL,

		-- Deposit vault
		vault_address TEXT NOT NULL,
		vault_salt TEXT NOT NULL,

		-- Trade definition
		sell_token TEXT NOT NULL,
		buy_token TEXT NOT NULL,
		recipient_address TEXT NOT NULL,
		refund_address TEXT NOT NULL,

		-- State machine (pending_deposit, executing, complete, failed,
		-- expired, refund_pending, refunded)
		status TEXT NOT NULL DEFAULT 'pending_deposit',

		-- Deposit details (populated at detection)
		deposit_tx_hash TEXT,
		deposit_amount TEXT,
		depositor_address TEXT,

		-- Order details (populated at submission)
		cow_order_uid TEXT,
		order_status TEXT,

		-- Settlement details (populated at fill)
		settlement_tx_hash TEXT,
		actual_buy_amount TEXT,

		-- Refund details (populated by out-of-band recovery)
		refund_tx_hash TEXT,
		refund_amount TEXT,

		-- Failure tracking
		failure_reason TEXT,

		-- Timing
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_swaps_vault ON swaps(vault_address);
	CREATE INDEX IF NOT EXISTS idx_swaps_pending ON swaps(chain_id, status, expires_at);
	CREATE INDEX IF NOT EXISTS idx_swaps_status ON swaps(status);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// Run migrations for existing databases
	return s.runMigrations()
}

// runMigrations runs schema migrations for existing databases.
// These are ALTER TABLE statements that add columns to existing tables.
// Errors are ignored since columns may already exist.
func (s *Storage) runMigrations() error {
	migrations := []string{
		"ALTER TABLE swaps ADD COLUMN depositor_address TEXT",
		"ALTER TABLE swaps ADD COLUMN refund_tx_hash TEXT",
		"ALTER TABLE swaps ADD COLUMN refund_amount TEXT",
	}

	for _, migration := range migrations {
		// Ignore errors - column may already exist
		_, _ = s.db.Exec(migration)
	}

	return nil
}
