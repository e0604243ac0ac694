package chunking

import "github.com/cloo-solutions/ragindex/internal/domain"

// FixedSize partitions text into consecutive windows of Size characters.
type FixedSize struct {
	Size int
}

func NewFixedSize(size int) *FixedSize {
	return &FixedSize{Size: size}
}

func (c *FixedSize) Chunk(text string) []domain.Chunk {
	return Fixed(text, c.Size)
}

// Fixed splits text into non-overlapping windows of size characters (code
// points), the last one possibly shorter. Concatenating the chunks gives back
// text exactly. A non-positive size yields no chunks.
func Fixed(text string, size int) []domain.Chunk {
	if size <= 0 || text == "" {
		return nil
	}

	runes := []rune(text)
	texts := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		texts = append(texts, string(runes[start:end]))
	}
	return toChunks(texts)
}
