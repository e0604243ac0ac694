package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed_Abcdefg(t *testing.T) {
	chunks := Fixed("abcdefg", 3)

	assert.Equal(t, []domain.Chunk{
		{ID: "c1", Text: "abc"},
		{ID: "c2", Text: "def"},
		{ID: "c3", Text: "g"},
	}, chunks)
}

func TestFixed_Partitions(t *testing.T) {
	texts := []string{
		"a",
		"abcdefg",
		"The quick brown fox jumps over the lazy dog.",
		"héllo wörld, ünïcode ✓",
		"   leading and trailing   ",
		strings.Repeat("x", 1000),
	}
	sizes := []int{1, 2, 3, 7, 10, 64, 5000}

	for _, text := range texts {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%d/%q", size, text[:min(len(text), 10)]), func(t *testing.T) {
				chunks := Fixed(text, size)
				n := len([]rune(text))

				require.Len(t, chunks, (n+size-1)/size)

				var rebuilt strings.Builder
				for i, c := range chunks {
					assert.Equal(t, fmt.Sprintf("c%d", i+1), c.ID)
					assert.LessOrEqual(t, len([]rune(c.Text)), size)
					assert.NotEmpty(t, c.Text)
					rebuilt.WriteString(c.Text)
				}
				assert.Equal(t, text, rebuilt.String())
			})
		}
	}
}

func TestFixed_NonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		assert.Empty(t, Fixed("abcdefg", size))
		assert.Empty(t, Fixed("", size))
	}
}

func TestFixed_EmptyText(t *testing.T) {
	assert.Empty(t, Fixed("", 3))
}

func TestFixedSize_Chunker(t *testing.T) {
	var c Chunker = NewFixedSize(4)
	chunks := c.Chunk("abcdefgh")
	require.Len(t, chunks, 2)
	assert.Equal(t, "efgh", chunks[1].Text)
}
