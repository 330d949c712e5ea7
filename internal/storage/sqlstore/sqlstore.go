// Package sqlstore provides a SQL-backed implementation of the storage
// interfaces. SQLite is the default backend; PostgreSQL is supported through
// the same queries, rebound to the driver's placeholder style.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/soham-0-0-7/split-slice/internal/storage"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqliteParams makes every transaction take the write lock up front and wait
// for a busy database instead of failing immediately.
const sqliteParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// Ensure Store implements the storage interfaces
var (
	_ storage.SettlementStore = (*Store)(nil)
	_ storage.PartyStore      = (*Store)(nil)
)

// Store implements storage.SettlementStore and storage.PartyStore over sqlx.
type Store struct {
	db *sqlx.DB
}

// New wraps an already opened and migrated database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open opens the database for the given driver and runs migrations.
// For SQLite the dsn is a file path; for PostgreSQL a connection URL.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// OpenSQLite creates a Store backed by the SQLite file at dbPath.
// It creates the parent directories and runs migrations automatically.
func OpenSQLite(dbPath string) (*Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Open(DriverSQLite, dbPath+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db.DB, DriverSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return New(db), nil
}

// OpenPostgres creates a Store backed by PostgreSQL and runs migrations.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db.DB, DriverPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return New(db), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
