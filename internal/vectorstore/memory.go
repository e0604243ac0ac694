package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

type recordKey struct {
	provenance string
	chunkID    string
}

type memoryRecord struct {
	chunk      domain.Chunk
	vector     domain.Vector
	provenance string
}

// MemoryStore keeps records in insertion order in process memory.
// Writers are serialized; queries never observe a partially applied put.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []memoryRecord
	index     map[recordKey]int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[recordKey]int)}
}

// Put stores the batch. A record with the same provenance and chunk ID is
// replaced in place and keeps its original position.
func (s *MemoryStore) Put(ctx context.Context, chunks []domain.Chunk, vectors []domain.Vector, provenance string) error {
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}

	dim, err := ValidateBatch(chunks, vectors)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]memoryRecord, len(chunks))
	for i := range chunks {
		chunk := chunks[i]
		chunk.Metadata = CloneMetadata(chunk.Metadata)
		batch[i] = memoryRecord{
			chunk:      chunk,
			vector:     append(domain.Vector(nil), vectors[i]...),
			provenance: provenance,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dim {
		return DimensionError(s.dimension, dim)
	}
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}

	for _, rec := range batch {
		key := recordKey{provenance: rec.provenance, chunkID: rec.chunk.ID}
		if pos, ok := s.index[key]; ok {
			s.records[pos] = rec
			continue
		}
		s.index[key] = len(s.records)
		s.records = append(s.records, rec)
	}
	s.dimension = dim

	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector domain.Vector, topK int) (domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueryResult{}, domain.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := domain.QueryResult{Searched: len(s.records)}
	if topK <= 0 || len(s.records) == 0 {
		return result, nil
	}
	if len(vector) != s.dimension {
		return domain.QueryResult{}, DimensionError(s.dimension, len(vector))
	}

	scores := make([]float64, len(s.records))
	order := make([]int, len(s.records))
	for i, rec := range s.records {
		scores[i] = Cosine(rec.vector, vector)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if topK > len(order) {
		topK = len(order)
	}
	result.Matches = make([]domain.Match, 0, topK)
	for _, pos := range order[:topK] {
		rec := s.records[pos]
		result.Matches = append(result.Matches, domain.Match{
			ChunkID:    rec.chunk.ID,
			Text:       rec.chunk.Text,
			Score:      scores[pos],
			Provenance: rec.provenance,
			Metadata:   CloneMetadata(rec.chunk.Metadata),
		})
	}
	return result, nil
}

// Clear drops every record and forgets the collection dimension.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.FromContext(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[recordKey]int)
	s.dimension = 0
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
