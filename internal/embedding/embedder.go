// Package embedding defines the batch embedding contract and the
// deterministic reference adapter.
package embedding

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// Embedder turns a batch of texts into one vector per text, in order.
// A call either succeeds for the whole batch or fails.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]domain.Vector, error)
}

// EmbedBatch calls e once for the whole batch and rejects malformed output.
// An empty batch never reaches the adapter.
func EmbedBatch(ctx context.Context, e Embedder, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.FromContext(err)
	}

	vectors, err := e.Embed(ctx, texts)
	if err != nil {
		if cancelled := domain.FromContext(err); cancelled != nil {
			return nil, cancelled
		}
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewEmbeddingError("embedding adapter failed", err)
	}

	if len(vectors) != len(texts) {
		return nil, domain.NewEmbeddingError(fmt.Sprintf("adapter returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, domain.NewEmbeddingError(fmt.Sprintf("adapter returned an empty vector at position %d", i), nil)
		}
		if len(v) != dim {
			return nil, domain.NewEmbeddingError(fmt.Sprintf("adapter returned mixed dimensions %d and %d", dim, len(v)), nil)
		}
	}

	return vectors, nil
}
