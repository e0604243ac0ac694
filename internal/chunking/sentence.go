package chunking

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// boundary matches a terminal mark followed by whitespace, using the same
// notion of whitespace as unicode.IsSpace (and so strings.TrimSpace). The
// split happens right after the mark so it stays with the preceding sentence.
var boundary = regexp.MustCompile(`[.!?][\s\v\x{85}\p{Z}]`)

// Sentence splits on sentence-terminal punctuation followed by whitespace.
type Sentence struct{}

func NewSentence() *Sentence {
	return &Sentence{}
}

func (c *Sentence) Chunk(text string) []domain.Chunk {
	return Sentences(text)
}

// Sentences segments text on '.', '!' or '?' followed by whitespace, trims each
// segment and drops empty ones. Abbreviations and decimals are not special
// cased. Text without any boundary comes back as one chunk.
func Sentences(text string) []domain.Chunk {
	var texts []string
	start := 0
	for _, loc := range boundary.FindAllStringIndex(text, -1) {
		end := loc[0] + 1
		texts = appendTrimmed(texts, text[start:end])
		start = end
	}
	texts = appendTrimmed(texts, text[start:])
	return toChunks(texts)
}

func appendTrimmed(texts []string, segment string) []string {
	if trimmed := strings.TrimSpace(segment); trimmed != "" {
		return append(texts, trimmed)
	}
	return texts
}
