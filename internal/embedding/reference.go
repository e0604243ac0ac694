package embedding

import (
	"context"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// referencePrimes are the moduli of the reference vector, one per component.
var referencePrimes = [...]int64{7, 11, 13}

// ReferenceDimensions is the fixed output length of the reference adapter.
const ReferenceDimensions = len(referencePrimes)

// Reference is a deterministic, offline embedder for tests. It carries no
// semantic meaning: each component is the sum of the text's code points
// modulo a small prime.
type Reference struct{}

func NewReference() *Reference {
	return &Reference{}
}

func (r *Reference) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.FromContext(err)
	}

	vectors := make([]domain.Vector, len(texts))
	for i, text := range texts {
		vectors[i] = ReferenceVector(text)
	}
	return vectors, nil
}

// ReferenceVector computes the reference embedding of a single text.
func ReferenceVector(text string) domain.Vector {
	var sum int64
	for _, r := range text {
		sum += int64(r)
	}

	v := make(domain.Vector, ReferenceDimensions)
	for i, p := range referencePrimes {
		v[i] = float32(sum % p)
	}
	return v
}
