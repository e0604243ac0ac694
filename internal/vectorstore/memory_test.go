package vectorstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/cloo-solutions/ragindex/internal/vectorstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		return vectorstore.NewMemoryStore()
	})
}

func TestMemoryStore_CopiesVectors(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()
	v := domain.Vector{1, 0, 0}
	require.NoError(t, s.Put(ctx, []domain.Chunk{domain.MakeChunk("a", 0)}, []domain.Vector{v}, "doc"))

	v[0], v[1] = 0, 1

	res, err := s.Query(ctx, domain.Vector{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-9)
}

func TestMemoryStore_CopiesMetadata(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()
	md := map[string]any{"k": "v", "tags": []any{"x"}, "nested": map[string]any{"n": "1"}}
	chunk := domain.MakeChunk("a", 0).WithMetadata(md)
	require.NoError(t, s.Put(ctx, []domain.Chunk{chunk}, []domain.Vector{{1, 0}}, "doc"))

	chunk.Metadata["k"] = "changed after put"
	chunk.Metadata["tags"].([]any)[0] = "changed after put"

	first, err := s.Query(ctx, domain.Vector{1, 0}, 1)
	require.NoError(t, err)
	first.Matches[0].Metadata["k2"] = "changed via result"
	first.Matches[0].Metadata["nested"].(map[string]any)["n"] = "changed via result"

	second, err := s.Query(ctx, domain.Vector{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"k":      "v",
		"tags":   []any{"x"},
		"nested": map[string]any{"n": "1"},
	}, second.Matches[0].Metadata)
}

func TestMemoryStore_ConcurrentPutsAreNotInterleaved(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()

	const writers, batch = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			chunks := make([]domain.Chunk, batch)
			vectors := make([]domain.Vector, batch)
			for i := range chunks {
				chunks[i] = domain.MakeChunk(fmt.Sprintf("w%d-%d", w, i), i)
				vectors[i] = domain.Vector{float32(w + 1), 1}
			}
			assert.NoError(t, s.Put(ctx, chunks, vectors, fmt.Sprintf("doc-%d", w)))
		}(w)
	}

	// Readers only ever see whole batches.
	for r := 0; r < 20; r++ {
		res, err := s.Query(ctx, domain.Vector{1, 1}, 1)
		require.NoError(t, err)
		assert.Zero(t, res.Searched%batch)
	}
	wg.Wait()

	assert.Equal(t, writers*batch, s.Len())
}
