// Package chunking splits raw text into ordered, non-empty chunks.
package chunking

import (
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// Chunker turns text into an ordered sequence of chunks. Implementations are
// pure and never emit a chunk with empty text.
type Chunker interface {
	Chunk(text string) []domain.Chunk
}

// Kind names a chunking strategy in pipeline configuration.
type Kind string

const (
	KindFixed    Kind = "fixed"
	KindSentence Kind = "sentence"
	KindWindow   Kind = "window"
)

// Kinds lists every selectable strategy.
func Kinds() []Kind {
	return []Kind{KindFixed, KindSentence, KindWindow}
}

// Options selects and parameterizes a strategy.
type Options struct {
	Kind    Kind
	Size    int
	Overlap int
}

// New returns the strategy named by opts.Kind.
// A fixed chunker with a non-positive size is valid and yields no chunks.
func New(opts Options) (Chunker, error) {
	switch opts.Kind {
	case KindFixed:
		return NewFixedSize(opts.Size), nil
	case KindSentence:
		return NewSentence(), nil
	case KindWindow:
		w := DefaultWindowOptions()
		if opts.Size > 0 {
			w.MaxChars = opts.Size
			if w.MinChars > w.MaxChars {
				w.MinChars = w.MaxChars / 2
			}
		}
		if opts.Overlap > 0 {
			w.Overlap = opts.Overlap
		}
		return NewWindow(w), nil
	default:
		return nil, domain.NewConfigurationError(fmt.Sprintf("chunker %q is not one of %v", opts.Kind, Kinds()), domain.ErrUnknownChunker)
	}
}

func toChunks(texts []string) []domain.Chunk {
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.MakeChunk(text, i))
	}
	return chunks
}
