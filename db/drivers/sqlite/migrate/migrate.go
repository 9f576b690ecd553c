package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/shortlink-org/bank-saga/db"
)

// Migration applies migrations from the given filesystem to the database.
// The filesystem should contain a "migrations" directory with migration files.
func Migration(ctx context.Context, store db.DB, fsys fs.FS, tableName string) error {
	client, ok := store.GetConn().(*sql.DB)
	if !ok {
		return db.ErrGetConnection
	}

	driverMigrations, err := iofs.New(fsys, "migrations")
	if err != nil {
		return &MigrationError{
			Err:         err,
			Description: "failed to create migration source",
		}
	}

	// Verify connection
	if err := client.PingContext(ctx); err != nil {
		return &MigrationError{
			Err:         err,
			Description: "failed to ping database",
		}
	}

	driverDB, err := sqlite.WithInstance(client, &sqlite.Config{
		MigrationsTable: "schema_migrations_" + strings.ReplaceAll(tableName, "-", "_"),
	})
	if err != nil {
		return &MigrationError{
			Err:         err,
			Description: "failed to create migration driver",
		}
	}

	// the instance is not closed: closing it would close the shared *sql.DB
	migration, err := migrate.NewWithInstance("iofs", driverMigrations, "sqlite", driverDB)
	if err != nil {
		return &MigrationError{
			Err:         err,
			Description: "failed to create migration instance",
		}
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &MigrationError{
			Err:         err,
			Description: "failed to apply migration",
		}
	}

	return nil
}
