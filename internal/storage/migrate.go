package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaStatus reports the schema version after migrating. Applied is false
// when the database was already current.
type SchemaStatus struct {
	Version uint
	Applied bool
}

// RunMigrations brings the SQLite database at dbPath to the latest embedded
// schema. It uses its own connection.
func RunMigrations(dbPath string) (SchemaStatus, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+dbPath)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	status := SchemaStatus{Applied: true}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return SchemaStatus{}, fmt.Errorf("apply migrations: %w", err)
		}
		status.Applied = false
	}

	version, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return SchemaStatus{}, fmt.Errorf("schema version %d is dirty", version)
	}
	status.Version = version
	return status, nil
}
