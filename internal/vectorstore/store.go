// Package vectorstore defines the storage contract for chunk vectors and an
// in-process implementation of it.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// Store persists chunks with their vectors and answers similarity queries.
//
// Put is atomic per call. Query ranks by cosine similarity, highest first,
// with ties kept in insertion order. Clear removes every record.
type Store interface {
	Put(ctx context.Context, chunks []domain.Chunk, vectors []domain.Vector, provenance string) error
	Query(ctx context.Context, vector domain.Vector, topK int) (domain.QueryResult, error)
	Clear(ctx context.Context) error
}

// ValidateBatch checks a put batch before anything is written and returns the
// batch dimension.
func ValidateBatch(chunks []domain.Chunk, vectors []domain.Vector) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, domain.NewConfigurationError(fmt.Sprintf("got %d chunks but %d vectors", len(chunks), len(vectors)), nil)
	}
	if len(vectors) == 0 {
		return 0, nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, domain.NewConfigurationError(fmt.Sprintf("vector for chunk %s is empty", chunks[i].ID), nil)
		}
		if len(v) != dim {
			return 0, DimensionError(dim, len(v))
		}
	}
	return dim, nil
}

// DimensionError reports a vector whose length differs from the collection's.
func DimensionError(want, got int) error {
	return domain.NewConfigurationError(fmt.Sprintf("collection has dimension %d, got %d", want, got), domain.ErrDimensionMismatch)
}

// WrapBackendError classifies an error raised by a database backend. Taxonomy
// errors pass through, context failures become CancelledError and anything
// else becomes StorageError.
func WrapBackendError(ctx context.Context, err error, message string) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) != "" {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewCancelledError(message, ctxErr)
	}
	if cancelled := domain.FromContext(err); cancelled != nil {
		return cancelled
	}
	return domain.NewStorageError(message, err)
}
