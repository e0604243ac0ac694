package sqlite

import (
	"context"
	"database/sql"
)

const chunkRecordsSchema = `
CREATE TABLE IF NOT EXISTS chunk_records (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    provenance  TEXT NOT NULL,
    chunk_id    TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    text        TEXT NOT NULL,
    metadata    TEXT,
    embedding   BLOB NOT NULL,
    dim         INTEGER NOT NULL,
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (provenance, chunk_id)
);
`

// EnsureSchema creates the chunk_records table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, chunkRecordsSchema)
	return err
}
