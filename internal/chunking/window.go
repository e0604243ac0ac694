package chunking

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/ragindex/internal/domain"
)

// WindowOptions controls the overlapping window strategy.
type WindowOptions struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultWindowOptions provides sane defaults for long documents.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 40,
	}
}

// Window produces overlapping windows of at most MaxChars characters, cutting
// at whitespace once MinChars is reached.
type Window struct {
	opts WindowOptions
}

func NewWindow(opts WindowOptions) *Window {
	if opts.MaxChars <= 0 {
		opts = DefaultWindowOptions()
	}
	return &Window{opts: opts}
}

func (c *Window) Chunk(text string) []domain.Chunk {
	return toChunks(windowTexts(text, c.opts))
}

func windowTexts(text string, cfg WindowOptions) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	texts := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(texts) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if segment := strings.TrimSpace(string(runes[start:end])); segment != "" {
			texts = append(texts, segment)
		}

		if end >= len(runes) {
			break
		}

		next := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			next = end - cfg.Overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return texts
}
