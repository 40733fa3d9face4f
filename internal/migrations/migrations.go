// Package migrations embeds the SQL schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Up applies every pending migration. It is a no-op when the schema is current.
func Up(db *sql.DB) error {
	instance, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Version reports the applied schema version and whether it is dirty.
func Version(db *sql.DB) (uint, bool, error) {
	instance, err := newMigrate(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := instance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrations: driver: %w", err)
	}
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: source: %w", err)
	}
	instance, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return instance, nil
}
