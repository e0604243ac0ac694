package domain

import "fmt"

// Chunk is one retrievable unit of text produced by a chunker.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// MakeChunk builds the chunk at position index (0-based) of a chunking run.
// IDs are c1, c2, ... so re-chunking the same text yields the same IDs.
func MakeChunk(text string, index int) Chunk {
	return Chunk{
		ID:   ChunkID(index),
		Text: text,
	}
}

// ChunkID returns the identifier for the chunk at position index.
func ChunkID(index int) string {
	return fmt.Sprintf("c%d", index+1)
}

// WithMetadata returns a copy of c carrying a copy of metadata.
func (c Chunk) WithMetadata(metadata map[string]any) Chunk {
	if len(metadata) == 0 {
		return c
	}
	merged := make(map[string]any, len(c.Metadata)+len(metadata))
	for k, v := range c.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	c.Metadata = merged
	return c
}

// Vector is an embedding. Its length is fixed per embedding adapter.
type Vector []float32

// Dimension returns the number of components.
func (v Vector) Dimension() int {
	return len(v)
}
