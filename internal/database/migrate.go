package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// DefaultMigrationsSource is where the schema lives relative to the working directory.
const DefaultMigrationsSource = "file://migrations"

// Direction selects which way migrations are applied.
type Direction string

const (
	MigrateUp   Direction = "up"
	MigrateDown Direction = "down"
)

// Migrate applies the migrations found at source (a golang-migrate source URL).
func Migrate(databaseURL, source string, direction Direction, logger *zap.Logger) error {
	if source == "" {
		source = DefaultMigrationsSource
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	switch direction {
	case MigrateDown:
		err = m.Down()
	case MigrateUp, "":
		err = m.Up()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("migrations: no schema version recorded", zap.String("direction", string(direction)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if noChange {
		logger.Info("migrations: database is up to date", zap.Uint("version", version))
	} else {
		logger.Info("migrations: applied", zap.Uint("version", version), zap.String("direction", string(direction)))
	}
	return nil
}
