// Package storetest holds the behaviour every vectorstore.Store must share.
// Backend test files call Run with a constructor for an empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/embedding"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreDelta = 1e-5

// Run executes the contract suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) vectorstore.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s vectorstore.Store)
	}{
		{"QueryFindsStoredVector", testQueryFindsStoredVector},
		{"RanksDescendingWithStableTies", testRanksDescendingWithStableTies},
		{"NeverReturnsMoreThanStored", testNeverReturnsMoreThanStored},
		{"PutClearQueryIsEmpty", testPutClearQueryIsEmpty},
		{"NonPositiveTopK", testNonPositiveTopK},
		{"BatchLengthMismatch", testBatchLengthMismatch},
		{"MixedDimensionsInBatchWritesNothing", testMixedDimensionsInBatchWritesNothing},
		{"DimensionMismatchAcrossPuts", testDimensionMismatchAcrossPuts},
		{"QueryDimensionMismatch", testQueryDimensionMismatch},
		{"ClearResetsDimension", testClearResetsDimension},
		{"LastWriteWinsPerProvenanceAndChunk", testLastWriteWins},
		{"CancelledPutWritesNothing", testCancelledPutWritesNothing},
		{"MetadataAndProvenancePassThrough", testMetadataAndProvenance},
		{"ReferenceRoundTrip", testReferenceRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.MakeChunk(text, i)
	}
	return out
}

func count(t *testing.T, s vectorstore.Store, dim int) int {
	t.Helper()
	res, err := s.Query(context.Background(), make(domain.Vector, dim), 1)
	require.NoError(t, err)
	return res.Searched
}

func testQueryFindsStoredVector(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	err := s.Put(ctx, chunks("alpha", "beta", "gamma"), []domain.Vector{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, "doc-1")
	require.NoError(t, err)

	res, err := s.Query(ctx, domain.Vector{0.1, 0.9, 0}, 1)

	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "c2", res.Matches[0].ChunkID)
	assert.Equal(t, "beta", res.Matches[0].Text)
	assert.Equal(t, 3, res.Searched)
}

func testRanksDescendingWithStableTies(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	err := s.Put(ctx, chunks("low", "tie-a", "mid", "tie-b"), []domain.Vector{{0, 1, 0}, {1, 0, 0}, {1, 1, 0}, {2, 0, 0}}, "doc-1")
	require.NoError(t, err)

	res, err := s.Query(ctx, domain.Vector{1, 0, 0}, 4)

	require.NoError(t, err)
	ids := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		ids = append(ids, m.ChunkID)
	}
	assert.Equal(t, []string{"c2", "c4", "c3", "c1"}, ids)
	assert.InDelta(t, 1.0, res.Matches[0].Score, scoreDelta)
	assert.InDelta(t, 1.0, res.Matches[1].Score, scoreDelta)
	assert.InDelta(t, 0.70710678, res.Matches[2].Score, scoreDelta)
	assert.InDelta(t, 0.0, res.Matches[3].Score, scoreDelta)
}

func testNeverReturnsMoreThanStored(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("one", "two"), []domain.Vector{{1, 2, 3}, {3, 2, 1}}, "doc-1"))

	res, err := s.Query(ctx, domain.Vector{1, 1, 1}, 5)

	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, 2, res.Searched)
}

func testPutClearQueryIsEmpty(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("one", "two"), []domain.Vector{{1, 2, 3}, {3, 2, 1}}, "doc-1"))

	require.NoError(t, s.Clear(ctx))
	res, err := s.Query(ctx, domain.Vector{1, 2, 3}, 10)

	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 0, res.Searched)
}

func testNonPositiveTopK(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("one"), []domain.Vector{{1, 2, 3}}, "doc-1"))

	for _, k := range []int{0, -1} {
		res, err := s.Query(ctx, domain.Vector{1, 2, 3}, k)
		require.NoError(t, err)
		assert.Empty(t, res.Matches)
	}
}

func testBatchLengthMismatch(t *testing.T, s vectorstore.Store) {
	err := s.Put(context.Background(), chunks("one", "two"), []domain.Vector{{1, 2, 3}}, "doc-1")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 0, count(t, s, 3))
}

func testMixedDimensionsInBatchWritesNothing(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("seed"), []domain.Vector{{1, 1, 1}}, "seed"))

	err := s.Put(ctx, chunks("a", "b", "c"), []domain.Vector{{1, 0, 0}, {0, 1, 0}, {0, 1}}, "doc-1")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 1, count(t, s, 3))
}

func testDimensionMismatchAcrossPuts(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("a"), []domain.Vector{{1, 0, 0}}, "doc-1"))

	err := s.Put(ctx, chunks("b"), []domain.Vector{{1, 0, 0, 0}}, "doc-2")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, count(t, s, 3))
}

func testQueryDimensionMismatch(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("a"), []domain.Vector{{1, 0, 0}}, "doc-1"))

	_, err := s.Query(ctx, domain.Vector{1, 0}, 1)

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func testClearResetsDimension(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("a"), []domain.Vector{{1, 0, 0}}, "doc-1"))
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.Put(ctx, chunks("b"), []domain.Vector{{1, 0}}, "doc-2"))
	assert.Equal(t, 1, count(t, s, 2))
}

func testLastWriteWins(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, chunks("first", "other"), []domain.Vector{{1, 0, 0}, {0, 1, 0}}, "doc-1"))
	require.NoError(t, s.Put(ctx, chunks("replaced"), []domain.Vector{{0, 0, 1}}, "doc-1"))
	require.NoError(t, s.Put(ctx, chunks("elsewhere"), []domain.Vector{{1, 0, 0}}, "doc-2"))

	res, err := s.Query(ctx, domain.Vector{0, 0, 1}, 10)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Searched)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "replaced", res.Matches[0].Text)
	assert.Equal(t, "doc-1", res.Matches[0].Provenance)

	// All scores tie against a zero vector, exposing insertion order: the
	// replaced record keeps its original position.
	res, err = s.Query(ctx, domain.Vector{0, 0, 0}, 10)
	require.NoError(t, err)
	texts := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"replaced", "other", "elsewhere"}, texts)
}

func testCancelledPutWritesNothing(t *testing.T, s vectorstore.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, chunks("a", "b"), []domain.Vector{{1, 0, 0}, {0, 1, 0}}, "doc-1")

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, 0, count(t, s, 3))
}

func testMetadataAndProvenance(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	c := domain.MakeChunk("with metadata", 0).WithMetadata(map[string]any{"source": "notes.md"})
	require.NoError(t, s.Put(ctx, []domain.Chunk{c}, []domain.Vector{{1, 2, 3}}, "doc-7"))

	res, err := s.Query(ctx, domain.Vector{1, 2, 3}, 1)

	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "doc-7", res.Matches[0].Provenance)
	assert.Equal(t, "notes.md", res.Matches[0].Metadata["source"])
}

func testReferenceRoundTrip(t *testing.T, s vectorstore.Store) {
	ctx := context.Background()
	texts := []string{"abc", "Hello world.", "How are you?"}
	vectors, err := embedding.NewReference().Embed(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, chunks(texts...), vectors, "doc-1"))

	for i, text := range texts {
		q := embedding.ReferenceVector(text)
		res, err := s.Query(ctx, q, 1)
		require.NoError(t, err)
		require.Len(t, res.Matches, 1)
		assert.Equal(t, domain.ChunkID(i), res.Matches[0].ChunkID, text)
	}
}
