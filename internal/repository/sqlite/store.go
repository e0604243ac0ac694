// Package sqlite is the embedded durable storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
)

const upsertSQL = `
INSERT INTO chunk_records (provenance, chunk_id, chunk_index, text, metadata, embedding, dim)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (provenance, chunk_id) DO UPDATE SET
    chunk_index = excluded.chunk_index,
    text = excluded.text,
    metadata = excluded.metadata,
    embedding = excluded.embedding,
    dim = excluded.dim,
    updated_at = CURRENT_TIMESTAMP`

const searchSQL = `
SELECT chunk_id, text, provenance, metadata,
       COALESCE(vec_cosine(embedding, ?), 0) AS score,
       COUNT(*) OVER () AS total
FROM chunk_records
ORDER BY score DESC, seq ASC
LIMIT ?`

// Store keeps chunk records in a SQLite database. Similarity is cosine,
// computed by the vec_cosine SQL function; a zero vector scores 0.
type Store struct {
	db *sql.DB
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore wraps an open database. The schema must already exist, see
// EnsureSchema; vec_cosine must be registered before the connection opened.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db is nil")
	}
	return &Store{db: db}, nil
}

// Put writes the batch in one transaction through a prepared upsert; any
// failure rolls the whole batch back.
func (s *Store) Put(ctx context.Context, chunks []domain.Chunk, vectors []domain.Vector, provenance string) error {
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}

	dim, err := vectorstore.ValidateBatch(chunks, vectors)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	metadata := make([]sql.NullString, len(chunks))
	for i, c := range chunks {
		raw, err := vectorstore.EncodeMetadata(c.Metadata)
		if err != nil {
			return domain.NewConfigurationError(fmt.Sprintf("metadata of chunk %s is not serializable", c.ID), err)
		}
		metadata[i] = sql.NullString{String: string(raw), Valid: raw != nil}
	}

	return vectorstore.WrapBackendError(ctx, s.put(ctx, chunks, vectors, metadata, dim, provenance), "failed to store chunk records")
}

func (s *Store) put(ctx context.Context, chunks []domain.Chunk, vectors []domain.Vector, metadata []sql.NullString, dim int, provenance string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := collectionDimension(ctx, tx)
	if err != nil {
		return err
	}
	if current != 0 && current != dim {
		return vectorstore.DimensionError(current, dim)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, provenance, c.ID, i, c.Text, metadata[i], encodeVector(vectors[i]), dim); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) Query(ctx context.Context, vector domain.Vector, topK int) (domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueryResult{}, domain.FromContext(err)
	}

	current, err := collectionDimension(ctx, s.db)
	if err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to read collection dimension")
	}
	if current == 0 {
		return domain.QueryResult{}, nil
	}

	if topK <= 0 {
		var total int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_records`).Scan(&total); err != nil {
			return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to count chunk records")
		}
		return domain.QueryResult{Searched: total}, nil
	}

	if len(vector) != current {
		return domain.QueryResult{}, vectorstore.DimensionError(current, len(vector))
	}

	rows, err := s.db.QueryContext(ctx, searchSQL, encodeVector(vector), topK)
	if err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to query chunk records")
	}
	defer rows.Close()

	var result domain.QueryResult
	for rows.Next() {
		var (
			m        domain.Match
			metadata sql.NullString
		)
		if err := rows.Scan(&m.ChunkID, &m.Text, &m.Provenance, &metadata, &m.Score, &result.Searched); err != nil {
			return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to scan chunk record")
		}
		if metadata.Valid {
			if m.Metadata, err = vectorstore.DecodeMetadata([]byte(metadata.String)); err != nil {
				return domain.QueryResult{}, domain.NewStorageError(fmt.Sprintf("corrupt metadata on chunk %s", m.ChunkID), err)
			}
		}
		result.Matches = append(result.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to read chunk records")
	}

	return result, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunk_records`)
	return vectorstore.WrapBackendError(ctx, err, "failed to clear chunk records")
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func collectionDimension(ctx context.Context, db queryRower) (int, error) {
	var dim int
	err := db.QueryRowContext(ctx, `SELECT dim FROM chunk_records LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}
