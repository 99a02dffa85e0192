package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	// Necessary to load the postgres driver used by migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable is the table golang-migrate uses to track the
// schema version of the Event Store tables.
const MigrationsTable = "eventstore_schema_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations creates or upgrades the Event Store tables
// in the database pointed by the dsn.
//
// Run it when the application starts, before building the EventStore.
func RunMigrations(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: invalid dsn format, %w", err)
	}

	// A dedicated migrations table avoids clashing with other golang-migrate
	// users of the same database.
	q := u.Query()
	q.Set("x-migrations-table", MigrationsTable)
	u.RawQuery = q.Encode()

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to read embedded migrations, %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, u.String())
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to connect to database, %w", err)
	}

	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres.RunMigrations: failed to execute migrations, %w", err)
	}

	return nil
}
