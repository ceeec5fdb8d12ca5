package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all embedded up migrations to db.
func RunMigrations(db *sql.DB, logger logr.Logger) error {
	m, err := newMigrate(db, logger)
	if err != nil {
		return err
	}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version, 0 when none ran.
func SchemaVersion(db *sql.DB) (uint, bool, error) {
	m, err := newMigrate(db, logr.Discard())
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB, logger logr.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger.WithName("migrate")}
	return m, nil
}

// migrateLogger adapts logr to migrate.Logger.
type migrateLogger struct {
	logger logr.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.V(1).Info(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.V(2).Enabled()
}
