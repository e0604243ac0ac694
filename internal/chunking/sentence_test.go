package chunking

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences_HelloWorld(t *testing.T) {
	chunks := Sentences("Hello world. How are you?")

	assert.Equal(t, []domain.Chunk{
		{ID: "c1", Text: "Hello world."},
		{ID: "c2", Text: "How are you?"},
	}, chunks)
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"exclamation and question", "Stop! Who goes there? Friend.", []string{"Stop!", "Who goes there?", "Friend."}},
		{"newlines and tabs", "One.\nTwo!\tThree?", []string{"One.", "Two!", "Three?"}},
		{"surrounding whitespace", "   First one.    Second one.   ", []string{"First one.", "Second one."}},
		{"repeated marks", "Really?! Yes.", []string{"Really?!", "Yes."}},
		{"mark without whitespace is not a boundary", "Version 1.2 shipped. Done", []string{"Version 1.2 shipped.", "Done"}},
		{"abbreviations are not special cased", "Dr. Smith arrived.", []string{"Dr.", "Smith arrived."}},
		{"isolated marks", "A. . B", []string{"A.", ".", "B"}},
		{"vertical tab", "One.\vTwo.", []string{"One.", "Two."}},
		{"no-break space", "One.\u00a0Two.", []string{"One.", "Two."}},
		{"ideographic space", "One.\u3000Two.", []string{"One.", "Two."}},
		{"next line", "One!\u0085Two.", []string{"One!", "Two."}},
		{"line separator", "One?\u2028Two.", []string{"One?", "Two."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Sentences(tt.text)
			require.Len(t, chunks, len(tt.want))
			for i, c := range chunks {
				assert.Equal(t, tt.want[i], c.Text)
				assert.Equal(t, domain.ChunkID(i), c.ID)
			}
		})
	}
}

// Text with no sentence boundary is treated as a single chunk. This is an
// assumption: a stricter consumer may prefer no chunks at all.
func TestSentences_NoTerminalPunctuationIsSingleChunk(t *testing.T) {
	chunks := Sentences("  no terminal punctuation here  ")

	require.Len(t, chunks, 1)
	assert.Equal(t, "no terminal punctuation here", chunks[0].Text)
}

func TestSentences_EmptyInput(t *testing.T) {
	assert.Empty(t, Sentences(""))
	assert.Empty(t, Sentences(" \n\t "))
}

func TestSentences_NeverEmptyAndKeepsPunctuation(t *testing.T) {
	inputs := []string{
		"Hello world. How are you?",
		"a.  b!  c?  ",
		"...   !!!   ???",
		"No boundary at all",
		"Trailing mark.",
		"Mixed.\n\nParagraphs! With? Marks. 3.14 is pi.",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			chunks := Sentences(input)
			texts := make([]string, 0, len(chunks))
			for _, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c.Text))
				assert.Equal(t, strings.TrimSpace(c.Text), c.Text)
				texts = append(texts, c.Text)
			}
			assert.Equal(t, countTerminal(input), countTerminal(strings.Join(texts, " ")))
		})
	}
}

func countTerminal(s string) int {
	return strings.Count(s, ".") + strings.Count(s, "!") + strings.Count(s, "?")
}
