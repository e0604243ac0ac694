package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/repository/sqlite"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) the SQLite database at path, registers the
// vector functions and ensures the schema exists. ":memory:" gives a private
// in-process database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := sqlite.RegisterFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register sqlite functions: %w", err)
	}

	dsn := path
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; also keeps a ":memory:" database on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := sqlite.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return db, nil
}
