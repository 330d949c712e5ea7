package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFS holds one directory of numbered migrations per driver.
//
//go:embed migrations
var migrationFS embed.FS

// runMigrations applies every pending migration for the driver.
// The migrate instance is not closed: closing it would close db.
func runMigrations(db *sql.DB, driver string) error {
	src, err := iofs.New(migrationFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	defer src.Close()

	var target database.Driver
	switch driver {
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		target, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		err = fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
