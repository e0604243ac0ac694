package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// collectionLockKey serializes writers while they check and set the
// collection dimension.
const collectionLockKey int64 = 0x7261676964 // "ragid"

const upsertChunkRecordSQL = `
	INSERT INTO chunk_records (provenance, chunk_id, chunk_index, text, metadata, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provenance, chunk_id) DO UPDATE SET
		chunk_index = EXCLUDED.chunk_index,
		text = EXCLUDED.text,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding,
		updated_at = now()`

// ChunkRecordRepository is the PostgreSQL/pgvector storage backend.
// Similarity is cosine (1 - cosine distance); a zero vector scores 0.
type ChunkRecordRepository struct {
	db dbtx
	tx *TxRunner
}

var _ vectorstore.Store = (*ChunkRecordRepository)(nil)

func NewChunkRecordRepository(pool *pgxpool.Pool) *ChunkRecordRepository {
	return &ChunkRecordRepository{db: pool, tx: NewTxRunner(pool)}
}

// Put upserts the whole batch in one transaction. Records are keyed by
// provenance and chunk ID; the last write wins and keeps the original seq.
func (r *ChunkRecordRepository) Put(ctx context.Context, chunks []domain.Chunk, vectors []domain.Vector, provenance string) error {
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

	metadata := make([][]byte, len(chunks))
	for i, c := range chunks {
		if metadata[i], err = vectorstore.EncodeMetadata(c.Metadata); err != nil {
			return domain.NewConfigurationError(fmt.Sprintf("metadata of chunk %s is not serializable", c.ID), err)
		}
	}

	err = r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, collectionLockKey); err != nil {
			return err
		}

		current, err := collectionDimension(ctx, tx)
		if err != nil {
			return err
		}
		if current != 0 && current != dim {
			return vectorstore.DimensionError(current, dim)
		}

		batch := &pgx.Batch{}
		for i, c := range chunks {
			batch.Queue(upsertChunkRecordSQL, provenance, c.ID, i, c.Text, metadata[i], pgvector.NewVector(vectors[i]))
		}

		results := tx.SendBatch(ctx, batch)
		for range chunks {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		return results.Close()
	})

	return vectorstore.WrapBackendError(ctx, err, "failed to store chunk records")
}

func (r *ChunkRecordRepository) Query(ctx context.Context, vector domain.Vector, topK int) (domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueryResult{}, domain.FromContext(err)
	}

	current, err := collectionDimension(ctx, r.db)
	if err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to read collection dimension")
	}
	if current == 0 {
		return domain.QueryResult{}, nil
	}

	if topK <= 0 {
		var total int
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunk_records`).Scan(&total); err != nil {
			return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to count chunk records")
		}
		return domain.QueryResult{Searched: total}, nil
	}

	if len(vector) != current {
		return domain.QueryResult{}, vectorstore.DimensionError(current, len(vector))
	}

	rows, err := r.db.Query(ctx, `
		SELECT chunk_id, text, provenance, metadata,
		       COALESCE(1 - NULLIF(embedding <=> $1, 'NaN'::float8), 0) AS score,
		       COUNT(*) OVER () AS total
		FROM chunk_records
		ORDER BY score DESC, seq ASC
		LIMIT $2`,
		pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to query chunk records")
	}
	defer rows.Close()

	var result domain.QueryResult
	for rows.Next() {
		var (
			m        domain.Match
			metadata []byte
			total    int
		)
		if err := rows.Scan(&m.ChunkID, &m.Text, &m.Provenance, &metadata, &m.Score, &total); err != nil {
			return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to scan chunk record")
		}
		if m.Metadata, err = vectorstore.DecodeMetadata(metadata); err != nil {
			return domain.QueryResult{}, domain.NewStorageError(fmt.Sprintf("corrupt metadata on chunk %s", m.ChunkID), err)
		}
		result.Searched = total
		result.Matches = append(result.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, vectorstore.WrapBackendError(ctx, err, "failed to read chunk records")
	}

	return result, nil
}

func (r *ChunkRecordRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}
	_, err := r.db.Exec(ctx, `DELETE FROM chunk_records`)
	return vectorstore.WrapBackendError(ctx, err, "failed to clear chunk records")
}

func collectionDimension(ctx context.Context, db dbtx) (int, error) {
	var dim int
	err := db.QueryRow(ctx, `SELECT vector_dims(embedding) FROM chunk_records LIMIT 1`).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}
