// Package source turns files and S3 objects into text documents for ingest.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Document is loaded text plus where it came from.
type Document struct {
	Provenance string
	Text       string
	Metadata   map[string]any
}

// Loader loads one document by reference.
type Loader interface {
	Load(ctx context.Context, ref string) (*Document, error)
}

// Format is a supported document format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// DetectFormat picks a format from the file extension, falling back to the
// content type for extensionless objects.
func DetectFormat(name, contentType string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".text":
		return FormatText, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".pdf":
		return FormatPDF, nil
	case "":
		switch {
		case strings.HasPrefix(contentType, "application/pdf"):
			return FormatPDF, nil
		case strings.HasPrefix(contentType, "text/markdown"):
			return FormatMarkdown, nil
		case strings.HasPrefix(contentType, "text/"):
			return FormatText, nil
		}
	}
	return "", fmt.Errorf("unsupported document %q: want .txt, .md or .pdf", name)
}

// Supported reports whether name has an extension DetectFormat accepts.
func Supported(name string) bool {
	if path.Ext(name) == "" {
		return false
	}
	_, err := DetectFormat(name, "")
	return err == nil
}

func extractText(format Format, data []byte) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("document is not valid UTF-8")
		}
		return string(data), nil
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

func newDocument(provenance string, format Format, origin string, data []byte) (*Document, error) {
	text, err := extractText(format, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", provenance, err)
	}
	return &Document{
		Provenance: provenance,
		Text:       text,
		Metadata: map[string]any{
			"source": origin,
			"format": string(format),
		},
	}, nil
}
