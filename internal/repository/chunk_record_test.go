//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/testutil"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/cloo-solutions/ragindex/internal/vectorstore/storetest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupChunkRecords(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func countRecords(ctx context.Context, t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunk_records`).Scan(&n))
	return n
}

func TestChunkRecordRepository_Contract(t *testing.T) {
	ctx := context.Background()
	pool := setupChunkRecords(ctx, t)

	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		return NewChunkRecordRepository(pool)
	})
}

func TestChunkRecordRepository_FailedBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	pool := setupChunkRecords(ctx, t)
	repo := NewChunkRecordRepository(pool)

	require.NoError(t, repo.Put(ctx, []domain.Chunk{domain.MakeChunk("existing", 0)}, []domain.Vector{{1, 0, 0}}, "doc-0"))

	// Postgres rejects NUL bytes in text columns, so the third row fails.
	chunks := []domain.Chunk{
		domain.MakeChunk("first", 0),
		domain.MakeChunk("second", 1),
		domain.MakeChunk("bad\x00row", 2),
	}
	vectors := []domain.Vector{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	err := repo.Put(ctx, chunks, vectors, "doc-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, 1, countRecords(ctx, t, pool))
}

func TestChunkRecordRepository_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	pool := setupChunkRecords(ctx, t)
	repo := NewChunkRecordRepository(pool)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunks := []domain.Chunk{domain.MakeChunk(fmt.Sprintf("w%d-a", i), 0), domain.MakeChunk(fmt.Sprintf("w%d-b", i), 1)}
			errs <- repo.Put(ctx, chunks, []domain.Vector{{float32(i + 1), 1, 0}, {0, 1, float32(i + 1)}}, fmt.Sprintf("doc-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, writers*2, countRecords(ctx, t, pool))
}

func TestChunkRecordRepository_CancelledQuery(t *testing.T) {
	ctx := context.Background()
	pool := setupChunkRecords(ctx, t)
	repo := NewChunkRecordRepository(pool)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := repo.Query(cancelled, domain.Vector{1, 0, 0}, 3)

	assert.ErrorIs(t, err, domain.ErrCancelled)
}
