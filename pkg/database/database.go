package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/pkg/config"
)

var (
	//go:embed schema/sqlite.sql
	sqliteSchema string
	//go:embed schema/postgres.sql
	postgresSchema string
)

// Open connects to the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Path)
	case config.DriverPostgres:
		return NewPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema, err := schemaFor(db.DriverName())
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

func schemaFor(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return sqliteSchema, nil
	case "postgres":
		return postgresSchema, nil
	default:
		return "", fmt.Errorf("no schema for driver %q", driver)
	}
}
